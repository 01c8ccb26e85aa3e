package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type row struct {
	id        uuid.UUID
	createdAt time.Time
}

func rowKey(r row) Cursor { return Cursor{CreatedAt: r.createdAt, ID: r.id} }

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 1, 5, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	token := c.Encode()
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")
	require.NotContains(t, token, "=")

	got, err := ParseCursor(token)
	require.NoError(t, err)
	require.True(t, c.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, c.ID, got.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"bad", "!!!", "bm8tc2VwYXJhdG9y"} {
		_, err := ParseCursor(token)
		require.True(t, errors.Is(err, ErrInvalidCursor), token)
	}
	got, err := ParseCursor("  ")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, 8, LimitWithBuffer(7))
}

func TestPageUsesLastKeptRowAsCursor(t *testing.T) {
	now := time.Now().UTC()
	rows := []row{
		{id: uuid.New(), createdAt: now},
		{id: uuid.New(), createdAt: now.Add(-time.Minute)},
		{id: uuid.New(), createdAt: now.Add(-2 * time.Minute)},
	}

	kept, next := Page(rows, 2, rowKey)
	require.Len(t, kept, 2)
	require.NotNil(t, next)
	require.Equal(t, rows[1].id, next.ID)

	kept, next = Page(rows, 3, rowKey)
	require.Len(t, kept, 3)
	require.Nil(t, next)
}
