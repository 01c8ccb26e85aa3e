package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

func TestDebitReducesStock(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 5)
	ledger := NewLedger(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Debit(context.Background(), tx, variant.ID, 3)
	})
	require.NoError(t, err)

	available, err := ledger.Available(context.Background(), variant.ID)
	require.NoError(t, err)
	require.Equal(t, 2, available)
}

func TestDebitRejectsShortage(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 2)
	ledger := NewLedger(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Debit(context.Background(), tx, variant.ID, 3)
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	details, ok := pkgerrors.As(err).Details().(ShortageDetails)
	require.True(t, ok)
	require.Equal(t, variant.ID, details.VariantID)
	require.Equal(t, 2, details.Available)
	require.Equal(t, 2, dbtest.Stock(t, conn, variant.ID))
}

func TestDebitUnknownVariant(t *testing.T) {
	conn := dbtest.Open(t)
	ledger := NewLedger(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Debit(context.Background(), tx, uuid.New(), 1)
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestDebitAndCreditRequirePositiveQuantity(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 2)
	ledger := NewLedger(conn)

	require.True(t, pkgerrors.Is(ledger.Debit(context.Background(), conn, variant.ID, 0), pkgerrors.CodeValidation))
	require.True(t, pkgerrors.Is(ledger.Credit(context.Background(), conn, variant.ID, -1), pkgerrors.CodeValidation))
}

func TestCreditRestoresStock(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 0)
	ledger := NewLedger(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Credit(context.Background(), tx, variant.ID, 4)
	})
	require.NoError(t, err)
	require.Equal(t, 4, dbtest.Stock(t, conn, variant.ID))
}

func TestConcurrentDebitsNeverOversell(t *testing.T) {
	conn := dbtest.Open(t)
	variant := dbtest.SeedVariant(t, conn, "Noir", 100000, 5)
	ledger := NewLedger(conn)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := conn.Transaction(func(tx *gorm.DB) error {
				return ledger.Debit(context.Background(), tx, variant.ID, 1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	require.Equal(t, 0, dbtest.Stock(t, conn, variant.ID))
}
