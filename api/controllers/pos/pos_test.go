package pos

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/middleware"
	internalpos "github.com/all-if-r/5SCENT-WEB-sub001/internal/pos"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

type recordingPOS struct {
	got   internalpos.RecordSaleInput
	calls int
}

func (r *recordingPOS) RecordSale(_ context.Context, input internalpos.RecordSaleInput) (*models.POSSale, error) {
	r.got = input
	r.calls++
	return &models.POSSale{ID: uuid.New()}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRecordSaleUsesCaller(t *testing.T) {
	cashier := uuid.New()
	variant := uuid.New()
	svc := &recordingPOS{}

	body := `{"items":[{"variant_id":"` + variant.String() + `","quantity":2}],"note":" walk-in "}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), cashier.String()))
	resp := httptest.NewRecorder()
	RecordSale(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, cashier, svc.got.CashierID)
	require.Equal(t, []internalpos.SaleItem{{VariantID: variant, Quantity: 2}}, svc.got.Items)
	require.Equal(t, "walk-in", svc.got.Note)
}

func TestRecordSaleRejectsEmptyOrAnonymous(t *testing.T) {
	svc := &recordingPOS{}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[]}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	RecordSale(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	RecordSale(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[]}`)))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Zero(t, svc.calls)
}
