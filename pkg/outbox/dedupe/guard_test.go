package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]any
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "5scent:idempotency:" + scope + ":" + id
}

func TestGuardClaimsOncePerConsumer(t *testing.T) {
	store := newMemoryStore()
	sales, err := NewGuard(store, "sales-analytics", 72*time.Hour)
	require.NoError(t, err)
	audit, err := NewGuard(store, "audit", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	first, err := sales.Claim(ctx, eventID)
	require.NoError(t, err)
	require.True(t, first)

	again, err := sales.Claim(ctx, eventID)
	require.NoError(t, err)
	require.False(t, again)

	other, err := audit.Claim(ctx, eventID)
	require.NoError(t, err)
	require.True(t, other, "claims are scoped per consumer")

	key := "5scent:idempotency:event:sales-analytics:" + eventID.String()
	require.Equal(t, 72*time.Hour, store.ttls[key])
}

func TestGuardForgetAllowsReprocessing(t *testing.T) {
	guard, err := NewGuard(newMemoryStore(), "sales-analytics", time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = guard.Claim(ctx, eventID)
	require.NoError(t, err)
	require.NoError(t, guard.Forget(ctx, eventID))

	claimed, err := guard.Claim(ctx, eventID)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestGuardSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	guard, err := NewGuard(store, "sales-analytics", time.Hour)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), uuid.New())
	require.ErrorContains(t, err, "redis down")
}

func TestGuardValidation(t *testing.T) {
	_, err := NewGuard(nil, "sales-analytics", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(newMemoryStore(), "", time.Hour)
	require.Error(t, err)
	_, err = NewGuard(newMemoryStore(), "sales-analytics", -time.Second)
	require.Error(t, err)

	guard, err := NewGuard(newMemoryStore(), "sales-analytics", 0)
	require.NoError(t, err)
	_, err = guard.Claim(context.Background(), uuid.Nil)
	require.Error(t, err)
}
