package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
)

func TestVariantsSnapshotsPriceAndName(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Santal Bloom", 185000, 3)

	got, err := NewReader().Variants(context.Background(), conn, []uuid.UUID{variant.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	snap := got[variant.ID]
	require.Equal(t, "Santal Bloom", snap.ProductName)
	require.Equal(t, "50ml", snap.Size)
	require.EqualValues(t, 185000, snap.Price)
	require.True(t, snap.Active)
}

func TestVariantsEmptyInput(t *testing.T) {
	got, err := NewReader().Variants(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}
