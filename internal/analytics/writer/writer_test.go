package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/types"
)

type insertCall struct {
	table string
	rows  []any
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(ctx context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rows: rows})
	if len(f.responses) == 0 {
		return nil
	}
	err := f.responses[0]
	f.responses = f.responses[1:]
	return err
}

func newTestWriter(t *testing.T, fake *fakeInserter) *SalesWriter {
	t.Helper()
	w, err := New(fake, "sales_events", Retry{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	require.NoError(t, err)
	return w
}

func TestNewWriterValidation(t *testing.T) {
	_, err := New(nil, "sales", Retry{})
	require.Error(t, err)
	_, err = New(&fakeInserter{}, "  ", Retry{})
	require.Error(t, err)

	w, err := New(&fakeInserter{}, "sales", Retry{BaseDelay: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, Retry{Attempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 5 * time.Second}, w.retry)
}

func TestInsertSaleUsesEventIDAsInsertID(t *testing.T) {
	fake := &fakeInserter{}
	w := newTestWriter(t, fake)

	require.NoError(t, w.InsertSale(context.Background(), types.SalesEventRow{EventID: "evt-1"}))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "sales_events", fake.calls[0].table)
	saver, ok := fake.calls[0].rows[0].(*cbigquery.StructSaver)
	require.True(t, ok)
	assert.Equal(t, "evt-1", saver.InsertID)
}

func TestInsertSaleRetriesTransientErrors(t *testing.T) {
	fake := &fakeInserter{responses: []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try again"),
		nil,
	}}
	w := newTestWriter(t, fake)

	require.NoError(t, w.InsertSale(context.Background(), types.SalesEventRow{EventID: "evt-2"}))
	assert.Len(t, fake.calls, 3)
}

func TestInsertSaleGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusBadGateway}
	fake := &fakeInserter{responses: []error{transient, transient, transient, nil}}
	w := newTestWriter(t, fake)

	err := w.InsertSale(context.Background(), types.SalesEventRow{EventID: "evt-3"})
	require.ErrorContains(t, err, "after 3 attempt(s)")
	assert.Len(t, fake.calls, 3)
}

func TestInsertSaleDoesNotRetryPermanentErrors(t *testing.T) {
	fake := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	w := newTestWriter(t, fake)

	require.Error(t, w.InsertSale(context.Background(), types.SalesEventRow{EventID: "evt-4"}))
	assert.Len(t, fake.calls, 1)
}

func TestTransientClassification(t *testing.T) {
	assert.False(t, transient(nil))
	assert.False(t, transient(errors.New("schema mismatch")))
	assert.True(t, transient(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.True(t, transient(status.Error(codes.DeadlineExceeded, "slow")))
	assert.False(t, transient(status.Error(codes.InvalidArgument, "bad")))

	backend := cbigquery.PutMultiError{{
		InsertID: "evt-1",
		Errors:   cbigquery.MultiError{&cbigquery.Error{Reason: "backendError"}},
	}}
	assert.True(t, transient(backend))

	mixed := append(backend, cbigquery.RowInsertionError{
		InsertID: "evt-2",
		Errors:   cbigquery.MultiError{&cbigquery.Error{Reason: "invalid"}},
	})
	assert.False(t, transient(mixed))
	assert.False(t, transient(cbigquery.PutMultiError{}))
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"order_id": "o-1"})
	require.NoError(t, err)
	assert.True(t, nj.Valid)

	nj, err = EncodeJSON(nil)
	require.NoError(t, err)
	assert.False(t, nj.Valid)

	raw := json.RawMessage(`{"total":210000}`)
	nj, err = EncodeJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, string(raw), nj.JSONVal)

	nj, err = EncodeJSON(json.RawMessage{})
	require.NoError(t, err)
	assert.False(t, nj.Valid)
}
