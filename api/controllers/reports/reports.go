package reports

import (
	"context"
	"net/http"
	"time"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/endpoint"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/validators"
	internalreports "github.com/all-if-r/5SCENT-WEB-sub001/internal/reports"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

// SalesReporter aggregates committed sales over a window.
type SalesReporter interface {
	Sales(ctx context.Context, from, to time.Time) (*internalreports.SalesReport, error)
}

// Sales serves ?from=YYYY-MM-DD&to=YYYY-MM-DD (to inclusive, WIB days).
// Without parameters the last seven days up to today are reported.
func Sales(svc SalesReporter, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return endpoint.Handle(logg, "reports", svc != nil, func(r *http.Request) (int, any, error) {
		from, to, err := reportWindow(r, now())
		if err != nil {
			return endpoint.Fail(err)
		}
		report, err := svc.Sales(r.Context(), from, to)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(report)
	})
}

func reportWindow(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	today := now.In(internalreports.Zone)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, internalreports.Zone)

	to := today.AddDate(0, 0, 1)
	day, given, err := validators.ParseQueryDate(r, "to", internalreports.Zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if given {
		to = day.AddDate(0, 0, 1)
	}

	from := to.AddDate(0, 0, -7)
	day, given, err = validators.ParseQueryDate(r, "from", internalreports.Zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if given {
		from = day
	}
	return from, to, nil
}
