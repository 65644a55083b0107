// Package access classifies a caller presenting a list token as the list's
// owner or a viewer.
package access

import (
	"context"

	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

// Role is what a resolved caller may do with a list.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleOwner:
		return "owner"
	default:
		return "none"
	}
}

// Lookup finds lists by token. Both methods return (nil, nil) for an unknown token.
type Lookup interface {
	GetListByPublicID(ctx context.Context, token string) (*models.List, error)
	GetListByPrivateID(ctx context.Context, token string) (*models.List, error)
}

// Policy tunes how the private token is honoured.
type Policy struct {
	// RequireOwnerIdentity makes the private token grant owner rights only
	// when the caller is also the list's owner.
	RequireOwnerIdentity bool
}

// Grant is the outcome of a resolution.
type Grant struct {
	List *models.List
	Role Role
	// ViaPrivate is set when the private token was presented, whatever the role.
	ViaPrivate bool
}

// IsOwner reports whether mutations are allowed.
func (g Grant) IsOwner() bool {
	return g.Role == RoleOwner
}

// RequireOwner returns an AuthorizationError naming op unless the grant is Owner.
func (g Grant) RequireOwner(op string) error {
	if g.Role != RoleOwner {
		return &shared.AuthorizationError{Op: op}
	}
	return nil
}

// Resolver maps (token, identity) pairs to grants.
type Resolver struct {
	lookup Lookup
	policy Policy
}

// NewResolver creates a Resolver.
func NewResolver(lookup Lookup, policy Policy) *Resolver {
	return &Resolver{lookup: lookup, policy: policy}
}

// Resolve classifies the caller. The public token always yields a viewer,
// even for the list's owner. An unknown token yields a NotFoundError.
func (r *Resolver) Resolve(ctx context.Context, token string, identity auth.Identity) (Grant, error) {
	if token == "" {
		return Grant{}, shared.NotFound("list", token)
	}

	list, err := r.lookup.GetListByPublicID(ctx, token)
	if err != nil {
		return Grant{}, shared.Persistence("resolve list", err)
	}
	if list != nil {
		return Grant{List: list, Role: RoleViewer}, nil
	}

	list, err = r.lookup.GetListByPrivateID(ctx, token)
	if err != nil {
		return Grant{}, shared.Persistence("resolve list", err)
	}
	if list == nil {
		return Grant{}, shared.NotFound("list", token)
	}

	role := RoleOwner
	if r.policy.RequireOwnerIdentity && identity.UserID != list.OwnerID {
		role = RoleViewer
	}
	return Grant{List: list, Role: role, ViaPrivate: true}, nil
}

// ResolveOwner resolves and then requires owner rights for op.
func (r *Resolver) ResolveOwner(ctx context.Context, token string, identity auth.Identity, op string) (Grant, error) {
	grant, err := r.Resolve(ctx, token, identity)
	if err != nil {
		return Grant{}, err
	}
	if err := grant.RequireOwner(op); err != nil {
		return Grant{}, err
	}
	return grant, nil
}
