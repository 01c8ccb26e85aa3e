package pos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/catalog"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/stock"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
)

func newPOS(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		DB:      client,
		Catalog: catalog.NewReader(),
		Stock:   stock.NewLedger(conn),
		Outbox:  outbox.NewWriter(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc, conn
}

func TestRecordSaleDebitsStockAndQueuesEvent(t *testing.T) {
	svc, conn := newPOS(t)
	ctx := context.Background()
	a := dbtest.SeedVariant(t, conn, "Aurora", 50000, 5)
	b := dbtest.SeedVariant(t, conn, "Noir", 75000, 5)

	sale, err := svc.RecordSale(ctx, RecordSaleInput{
		CashierID: uuid.New(),
		Items: []SaleItem{
			{VariantID: a.ID, Quantity: 1},
			{VariantID: b.ID, Quantity: 2},
			{VariantID: a.ID, Quantity: 1},
		},
		Note: " walk-in ",
	})
	require.NoError(t, err)
	require.Equal(t, int64(2*50000+2*75000), sale.Total)
	require.Len(t, sale.Items, 2)
	require.NotNil(t, sale.Note)
	require.Equal(t, "walk-in", *sale.Note)

	require.Equal(t, 3, dbtest.Stock(t, conn, a.ID))
	require.Equal(t, 3, dbtest.Stock(t, conn, b.ID))

	events, err := outbox.NewRepository(conn).ListByAggregate(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventPOSSaleRecorded, events[0].EventType)

	var stored models.POSSale
	require.NoError(t, conn.First(&stored, "id = ?", sale.ID).Error)
	require.Len(t, stored.Items, 2)
}

func TestRecordSaleShortfallFailsWholeSale(t *testing.T) {
	svc, conn := newPOS(t)
	a := dbtest.SeedVariant(t, conn, "Aurora", 50000, 5)
	b := dbtest.SeedVariant(t, conn, "Noir", 75000, 1)

	_, err := svc.RecordSale(context.Background(), RecordSaleInput{
		CashierID: uuid.New(),
		Items: []SaleItem{
			{VariantID: a.ID, Quantity: 2},
			{VariantID: b.ID, Quantity: 2},
		},
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	require.Equal(t, 5, dbtest.Stock(t, conn, a.ID))
	require.Equal(t, 1, dbtest.Stock(t, conn, b.ID))

	var sales int64
	require.NoError(t, conn.Model(&models.POSSale{}).Count(&sales).Error)
	require.Zero(t, sales)
}

func TestRecordSaleValidatesInput(t *testing.T) {
	svc, _ := newPOS(t)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, RecordSaleInput{CashierID: uuid.New()})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.RecordSale(ctx, RecordSaleInput{CashierID: uuid.New(), Items: []SaleItem{{VariantID: uuid.New(), Quantity: 0}}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.RecordSale(ctx, RecordSaleInput{CashierID: uuid.New(), Items: []SaleItem{{VariantID: uuid.New(), Quantity: 1}}})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
