// Package reports serves read-only sales aggregates for admins.
package reports

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

const maxReportRange = 366 * 24 * time.Hour

// Zone is Western Indonesia Time; store days are bucketed in it.
var Zone = time.FixedZone("WIB", 7*60*60)

// DayBucket aggregates one calendar day.
type DayBucket struct {
	Date       string `json:"date"`
	OrderCount int    `json:"order_count"`
	Gross      int64  `json:"gross"`
	Tax        int64  `json:"tax"`
}

// SalesReport aggregates completed online orders and in-store sales.
type SalesReport struct {
	From       time.Time   `json:"from"`
	To         time.Time   `json:"to"`
	OrderCount int         `json:"order_count"`
	Gross      int64       `json:"gross"`
	Tax        int64       `json:"tax"`
	POSCount   int         `json:"pos_count"`
	POSGross   int64       `json:"pos_gross"`
	Days       []DayBucket `json:"days"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type saleRow struct {
	Total     int64
	Tax       int64
	CreatedAt time.Time
}

// Sales aggregates orders created in [from, to) whose payment succeeded, or
// that were delivered as COD, plus POS sales in the same window.
func (s *Service) Sales(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	if !from.Before(to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	if to.Sub(from) > maxReportRange {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report range is limited to one year")
	}
	from, to = from.UTC(), to.UTC()

	var rows []saleRow
	err := s.db.WithContext(ctx).
		Table("orders AS o").
		Select("o.total AS total, o.tax AS tax, o.created_at AS created_at").
		Joins("LEFT JOIN payments AS p ON p.order_id = o.id").
		Where("o.created_at >= ? AND o.created_at < ?", from, to).
		Where("(o.payment_method = ? AND p.status = ?) OR (o.payment_method = ? AND o.status = ?)",
			enums.PaymentMethodQRIS, enums.PaymentStatusSuccess,
			enums.PaymentMethodCOD, enums.OrderStatusDelivered).
		Order("o.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate orders")
	}

	var pos struct {
		Count int
		Gross int64
	}
	err = s.db.WithContext(ctx).
		Table("pos_sales").
		Select("COUNT(*) AS count, COALESCE(SUM(total), 0) AS gross").
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&pos).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate pos sales")
	}

	report := &SalesReport{From: from, To: to, POSCount: pos.Count, POSGross: pos.Gross, Days: []DayBucket{}}
	index := map[string]int{}
	for _, row := range rows {
		report.OrderCount++
		report.Gross += row.Total
		report.Tax += row.Tax

		day := row.CreatedAt.In(Zone).Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			report.Days = append(report.Days, DayBucket{Date: day})
			i = len(report.Days) - 1
			index[day] = i
		}
		report.Days[i].OrderCount++
		report.Days[i].Gross += row.Total
		report.Days[i].Tax += row.Tax
	}
	return report, nil
}
