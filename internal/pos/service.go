// Package pos records in-store cashier sales against the shared stock counter.
package pos

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/catalog"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/payloads"
)

const maxNoteLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockDebiter interface {
	Debit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// SaleItem is one requested line of a cashier sale.
type SaleItem struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// RecordSaleInput is a full cashier sale.
type RecordSaleInput struct {
	CashierID uuid.UUID
	Items     []SaleItem
	Note      string
}

// Service records POS sales.
type Service interface {
	RecordSale(ctx context.Context, input RecordSaleInput) (*models.POSSale, error)
}

type ServiceParams struct {
	DB      txRunner
	Catalog catalog.Reader
	Stock   stockDebiter
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	tx      txRunner
	catalog catalog.Reader
	stock   stockDebiter
	outbox  outbox.Emitter
	logg    *logger.Logger
	clock   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		tx:      params.DB,
		catalog: params.Catalog,
		stock:   params.Stock,
		outbox:  params.Outbox,
		logg:    params.Logger,
		clock:   clock,
	}, nil
}

// RecordSale debits every item through the stock ledger in one transaction.
// A shortfall on any item fails the whole sale.
func (s *service) RecordSale(ctx context.Context, input RecordSaleInput) (*models.POSSale, error) {
	if input.CashierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier id required")
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}
	note := strings.TrimSpace(input.Note)
	if len(note) > maxNoteLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is too long")
	}

	var sale *models.POSSale
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.VariantID)
		}
		snapshots, err := s.catalog.Variants(ctx, tx, ids)
		if err != nil {
			return err
		}

		row := &models.POSSale{CashierID: input.CashierID}
		if note != "" {
			row.Note = &note
		}
		for _, item := range items {
			snap, ok := snapshots[item.VariantID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
					WithDetails(map[string]any{"variant_id": item.VariantID})
			}
			if err := s.stock.Debit(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return err
			}
			row.Items = append(row.Items, models.POSSaleItem{
				VariantID:   item.VariantID,
				ProductName: snap.ProductName,
				Size:        snap.Size,
				Quantity:    item.Quantity,
				UnitPrice:   snap.Price,
			})
			row.Total += snap.Price * int64(item.Quantity)
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return pkgerrors.FromStorage(err, "store pos sale")
		}

		now := s.clock().UTC()
		event := payloads.POSSaleRecordedEvent{
			SaleID:     row.ID,
			CashierID:  row.CashierID,
			Total:      row.Total,
			RecordedAt: now,
		}
		for _, item := range row.Items {
			event.Items = append(event.Items, payloads.POSSaleItemSnapshot{
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}
		if err := s.outbox.Emit(ctx, tx, outbox.Event{
			EventType:     enums.EventPOSSaleRecorded,
			AggregateType: enums.AggregatePOSSale,
			AggregateID:   row.ID,
			Actor:         &outbox.Actor{UserID: input.CashierID, Role: string(enums.UserRoleCashier)},
			Data:          event,
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue pos sale event")
		}
		sale = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"sale_id":    sale.ID.String(),
			"cashier_id": sale.CashierID.String(),
			"total":      sale.Total,
		})
		s.logg.Info(logCtx, "pos sale recorded")
	}
	return sale, nil
}

// mergeItems folds repeated variants into one line and orders lines by
// variant id so concurrent writers lock rows in the same order.
func mergeItems(items []SaleItem) ([]SaleItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale requires at least one item")
	}
	byVariant := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.VariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, ok := byVariant[item.VariantID]; !ok {
			order = append(order, item.VariantID)
		}
		byVariant[item.VariantID] += item.Quantity
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })
	out := make([]SaleItem, 0, len(order))
	for _, id := range order {
		out = append(out, SaleItem{VariantID: id, Quantity: byVariant[id]})
	}
	return out, nil
}
