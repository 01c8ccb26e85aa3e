// Package dbtest opens isolated in-memory sqlite databases carrying the full
// schema so repositories and services can be exercised without Postgres.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// Open returns a migrated database private to the calling test. Connections
// are capped at one so concurrent transactions serialize the way row locks
// would on Postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dbtest_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderLine{},
		&models.Payment{},
		&models.PaymentConflict{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
		&models.POSSale{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the shared db.Client.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.FromGorm(conn), conn
}

// SeedVariant creates a product with a single variant.
func SeedVariant(t *testing.T, conn *gorm.DB, name string, price int64, stock int) models.ProductVariant {
	t.Helper()
	product := models.Product{Name: name, IsActive: true}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	variant := models.ProductVariant{ProductID: product.ID, Size: "50ml", Price: price, Stock: stock}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("create variant: %v", err)
	}
	variant.Product = &product
	return variant
}

// SeedCartItem adds a cart line for userID.
func SeedCartItem(t *testing.T, conn *gorm.DB, userID, variantID uuid.UUID, qty int) models.CartItem {
	t.Helper()
	item := models.CartItem{UserID: userID, VariantID: variantID, Quantity: qty}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("create cart item: %v", err)
	}
	return item
}

// Stock reads the current counter of a variant.
func Stock(t *testing.T, conn *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	if err := conn.Select("stock").Where("id = ?", variantID).Take(&variant).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return variant.Stock
}

// SeedOrder inserts a Pending order with one line per variant without touching stock.
func SeedOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, method enums.PaymentMethod, lines ...models.OrderLine) models.Order {
	t.Helper()
	var subtotal int64
	for i := range lines {
		lines[i].LineTotal = lines[i].UnitPrice * int64(lines[i].Quantity)
		if lines[i].ProductName == "" {
			lines[i].ProductName = "Test Parfum"
		}
		if lines[i].Size == "" {
			lines[i].Size = "50ml"
		}
		subtotal += lines[i].LineTotal
	}
	tax := subtotal * 5 / 100
	order := models.Order{
		UserID:          userID,
		ShippingAddress: "Jl. Melati 1, Bandung",
		PaymentMethod:   method,
		Subtotal:        subtotal,
		TaxRate:         decimal.RequireFromString("0.05"),
		Tax:             tax,
		Total:           subtotal + tax,
		Status:          enums.OrderStatusPending,
		Lines:           lines,
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}
