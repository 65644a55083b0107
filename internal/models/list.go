package models

import (
	"time"
)

// List represents a user's ranked movie list
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	PrivateID string    `json:"private_id,omitempty"` // grants owner access, hidden from viewers
	PublicID  string    `json:"public_id"`            // read-only share token
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListView is a list together with its ranked items, as seen by one caller
type ListView struct {
	List
	IsOwner bool   `json:"is_owner"`
	Items   []Item `json:"items"`
}

// ListCreate is the request body for creating a list
type ListCreate struct {
	Name string `json:"name"`
}

// ListUpdate is the request body for renaming a list
type ListUpdate struct {
	Name *string `json:"name,omitempty"`
}

// ListSummary is a lightweight version for the owner's dashboard
type ListSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PrivateID string    `json:"private_id"`
	PublicID  string    `json:"public_id"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Redacted returns a copy of the view with the private token removed.
func (v ListView) Redacted() ListView {
	v.PrivateID = ""
	return v
}
