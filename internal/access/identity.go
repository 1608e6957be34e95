// Package access holds the per-request identity and the role guard that
// decides whether a request may reach a handler.
package access

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleStudent Role = "Student"
)

const LoginPath = "/login"

// Dashboard returns the home page of role.
func (r Role) Dashboard() string {
	switch r {
	case RoleAdmin:
		return "/admin-dashboard"
	case RoleStudent:
		return "/student_dashboard"
	default:
		return LoginPath
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Identity is the authenticated caller of a request.
type Identity struct {
	AccountID   uuid.UUID
	Username    string
	Role        Role
	DisplayName string
	SessionID   string
	ExpiresAt   time.Time
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
