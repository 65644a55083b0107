package shared

import (
	"errors"
	"fmt"
)

var (
	// Authentication errors
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid bearer token")

	// Session errors
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotReady = errors.New("session not loaded")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// NotFoundError reports an unknown list token, list id or item id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AuthorizationError reports a caller without owner rights attempting a mutation.
type AuthorizationError struct {
	Op string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: owner access required", e.Op)
}

// ValidationError reports a malformed request: empty name, bad positions,
// or a rank mapping that does not cover the list.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a write the store did not accept. For optimistic
// mutations the working copy has already changed when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFound builds a [NotFoundError].
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// Invalid builds a [ValidationError].
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Persistence wraps err in a [PersistenceError] unless it already carries
// one of the taxonomy types, which pass through unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsAuthorization(err) || IsValidation(err) || IsPersistence(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
