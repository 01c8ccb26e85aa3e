// Package writer streams sales rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/types"
)

// Retry bounds how often a transient insert failure is resent.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

var defaultRetry = Retry{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

func (r Retry) normalized() Retry {
	if r.Attempts <= 0 {
		r.Attempts = defaultRetry.Attempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = defaultRetry.BaseDelay
	}
	if r.MaxDelay < r.BaseDelay {
		r.MaxDelay = max(defaultRetry.MaxDelay, r.BaseDelay)
	}
	return r
}

func (r Retry) backoff() retry.Backoff {
	b := retry.NewExponential(r.BaseDelay)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(r.MaxDelay, b)
	return retry.WithMaxRetries(uint64(r.Attempts-1), b)
}

type inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// SalesWriter inserts one row per sales event.
type SalesWriter struct {
	client inserter
	table  string
	retry  Retry
}

func New(client inserter, table string, policy Retry) (*SalesWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("sales table is required")
	}
	return &SalesWriter{client: client, table: table, retry: policy.normalized()}, nil
}

// InsertSale writes row. The event id is also the BigQuery insert id, so a
// redelivery inside the streaming dedupe window is dropped server side.
func (w *SalesWriter) InsertSale(ctx context.Context, row types.SalesEventRow) error {
	rows := []any{&cbigquery.StructSaver{Struct: &row, InsertID: row.EventID}}
	attempts := 0
	err := retry.Do(ctx, w.retry.backoff(), func(ctx context.Context) error {
		attempts++
		err := w.client.InsertRows(ctx, w.table, rows)
		if transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %s into %s after %d attempt(s): %w", row.EventID, w.table, attempts, err)
	}
	return nil
}

// Row error reasons BigQuery documents as safe to resend.
var transientReasons = map[string]bool{
	"backendError":      true,
	"internalError":     true,
	"rateLimitExceeded": true,
	"timeout":           true,
}

var transientHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var transientGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// transient reports whether every failure inside err may clear on resend. A
// batch with one bad row is permanent as a whole.
func transient(err error) bool {
	if err == nil {
		return false
	}

	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		for _, rowErr := range rowErrs {
			if !transient(rowErr.Errors) {
				return false
			}
		}
		return len(rowErrs) > 0
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		for _, inner := range multi {
			if !transient(inner) {
				return false
			}
		}
		return len(multi) > 0
	}

	var bqErr *cbigquery.Error
	if errors.As(err, &bqErr) {
		return transientReasons[bqErr.Reason]
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok {
		return transientGRPC[st.Code()]
	}
	return false
}

// EncodeJSON prepares payload for a BigQuery JSON column. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
