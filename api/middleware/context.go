package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// identity is what Auth learned about the caller. Either half may be set on
// its own in tests.
type identity struct {
	userID string
	role   enums.UserRole
}

type identityKey struct{}

func identityFrom(ctx context.Context) identity {
	if ctx == nil {
		return identity{}
	}
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func withIdentity(ctx context.Context, mutate func(*identity)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id := identityFrom(ctx)
	mutate(&id)
	return context.WithValue(ctx, identityKey{}, id)
}

// UserIDFromContext returns the raw subject of the bearer token, or "".
func UserIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).userID
}

// UserUUIDFromContext is false for anonymous callers and malformed subjects.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw := identityFrom(ctx).userID
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	return identityFrom(ctx).role
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withIdentity(ctx, func(id *identity) { id.userID = userID })
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	return withIdentity(ctx, func(id *identity) { id.role = role })
}
