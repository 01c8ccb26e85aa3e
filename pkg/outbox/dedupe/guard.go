// Package dedupe stops a broker consumer from applying the same outbox event
// twice. Both Pub/Sub and Kafka deliver at least once.
package dedupe

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard records event ids one consumer has handled. Claims expire after ttl;
// zero keeps them forever.
type Guard struct {
	store    claimStore
	consumer string
	ttl      time.Duration
	now      func() time.Time
}

func NewGuard(store claimStore, consumer string, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("dedupe store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("dedupe ttl must not be negative")
	}
	return &Guard{store: store, consumer: consumer, ttl: ttl, now: time.Now}, nil
}

// Claim reports true when this delivery is the first to see eventID.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return g.store.SetNX(ctx, g.key(eventID), g.now().UTC().Format(time.RFC3339), g.ttl)
}

// Forget drops a claim so the next redelivery is handled again.
func (g *Guard) Forget(ctx context.Context, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return nil
	}
	return g.store.Del(ctx, g.key(eventID))
}

func (g *Guard) key(eventID uuid.UUID) string {
	return g.store.IdempotencyKey("event:"+g.consumer, eventID.String())
}
