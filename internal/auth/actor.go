package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("actor is not allowed to perform this action")
)

type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
	// RoleSystem is used by automated jobs such as the no-show sweep.
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleProvider, RoleAdmin, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the authenticated identity on whose behalf a core operation runs.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// System returns the actor used by background jobs and CLI commands.
func System() Actor {
	return Actor{Role: RoleSystem}
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CanManageProvider reports whether the actor may administer the given
// provider's templates and slots.
func (a Actor) CanManageProvider(providerID uuid.UUID) bool {
	switch a.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleProvider:
		return a.ID == providerID
	}
	return false
}

func (a Actor) String() string {
	if a.ID == uuid.Nil {
		return string(a.Role)
	}
	return string(a.Role) + ":" + a.ID.String()
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
