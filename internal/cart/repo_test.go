package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
)

func TestFindUserItemsIgnoresForeignLines(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 5)
	owner := uuid.New()
	other := uuid.New()
	mine := dbtest.SeedCartItem(t, conn, owner, variant.ID, 2)
	theirs := dbtest.SeedCartItem(t, conn, other, variant.ID, 1)

	repo := NewRepository(conn)
	items, err := repo.FindUserItems(context.Background(), owner, []uuid.UUID{mine.ID, theirs.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, mine.ID, items[0].ID)
}

func TestDeleteItemsOnlyTouchesOwner(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 5)
	owner := uuid.New()
	mine := dbtest.SeedCartItem(t, conn, owner, variant.ID, 2)
	theirs := dbtest.SeedCartItem(t, conn, uuid.New(), variant.ID, 1)

	repo := NewRepository(conn)
	deleted, err := repo.DeleteItems(context.Background(), owner, []uuid.UUID{mine.ID, theirs.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	remaining, err := repo.ListUserItems(context.Background(), owner)
	require.NoError(t, err)
	require.Empty(t, remaining)
}
