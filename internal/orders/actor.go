package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
)

type actorKey struct{}

// WithActor records who is driving a transition so outbox events carry it.
func WithActor(ctx context.Context, userID uuid.UUID, role enums.UserRole) context.Context {
	return context.WithValue(ctx, actorKey{}, &outbox.Actor{UserID: userID, Role: string(role)})
}

func actorFromContext(ctx context.Context) *outbox.Actor {
	if ctx == nil {
		return nil
	}
	actor, _ := ctx.Value(actorKey{}).(*outbox.Actor)
	return actor
}
