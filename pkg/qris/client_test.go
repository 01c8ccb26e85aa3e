package qris

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(config.GatewayConfig{
		BaseURL:      "http://gateway.test",
		ServerKey:    "SB-server-key",
		Acquirer:     "gopay",
		Timeout:      time.Second,
		RetryBackoff: time.Millisecond,
	}, WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return client
}

func TestChargeSendsQRISRequest(t *testing.T) {
	const respBody = `{"status_code":"201","transaction_id":"trx-1","order_id":"5SCENT-abc-1","gross_amount":"210000.00","transaction_status":"pending","transaction_time":"2026-01-02 10:00:00","qr_string":"000201010212","actions":[{"name":"generate-qr-code","method":"GET","url":"http://gateway.test/qr/trx-1"}]}`

	var captured *http.Request
	var payload map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		return jsonResponse(http.StatusOK, respBody), nil
	})

	resp, err := client.Charge(context.Background(), ChargeRequest{
		ExternalReference: "5SCENT-abc-1",
		GrossAmount:       210000,
		Items:             []ItemDetail{{ID: "v1", Name: "Noir 50ml", Price: 100000, Quantity: 2}, {ID: "tax", Name: "Tax", Price: 10000, Quantity: 1}},
	})
	require.NoError(t, err)

	require.Equal(t, "http://gateway.test/v2/charge", captured.URL.String())
	user, pass, ok := captured.BasicAuth()
	require.True(t, ok)
	require.Equal(t, "SB-server-key", user)
	require.Empty(t, pass)

	require.Equal(t, "qris", payload["payment_type"])
	details := payload["transaction_details"].(map[string]any)
	require.Equal(t, "5SCENT-abc-1", details["order_id"])
	require.EqualValues(t, 210000, details["gross_amount"])
	require.Equal(t, "gopay", payload["qris"].(map[string]any)["acquirer"])

	require.Equal(t, "trx-1", resp.TransactionID)
	require.Equal(t, "000201010212", resp.QRString)
	require.Equal(t, "http://gateway.test/qr/trx-1", resp.QRImageURL)
	require.EqualValues(t, 210000, resp.GrossAmount)
	require.NotNil(t, resp.TransactionTime)
	require.Equal(t, 3, resp.TransactionTime.Hour())
}

func TestChargeRetriesOnceOnServerError(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return jsonResponse(http.StatusBadGateway, `upstream`), nil
		}
		return jsonResponse(http.StatusOK, `{"status_code":"201","transaction_id":"trx-2","order_id":"ref","transaction_status":"pending"}`), nil
	})

	resp, err := client.Charge(context.Background(), ChargeRequest{ExternalReference: "ref", GrossAmount: 1000})
	require.NoError(t, err)
	require.Equal(t, "trx-2", resp.TransactionID)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestChargeGivesUpAfterSingleRetry(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})

	_, err := client.Charge(context.Background(), ChargeRequest{ExternalReference: "ref", GrossAmount: 1000})
	require.Error(t, err)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeGatewayUnavailable))
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestChargeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusOK, `{"status_code":"406","status_message":"duplicate order_id"}`), nil
	})

	_, err := client.Charge(context.Background(), ChargeRequest{ExternalReference: "ref", GrossAmount: 1000})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeGatewayUnavailable))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestChargeValidatesInput(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := client.Charge(context.Background(), ChargeRequest{GrossAmount: 10})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestStatusFetchesTransaction(t *testing.T) {
	var capturedURL string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		require.Equal(t, http.MethodGet, req.Method)
		return jsonResponse(http.StatusOK, `{"status_code":"200","transaction_id":"trx-3","order_id":"5SCENT-x-1","gross_amount":"5000.00","transaction_status":"settlement"}`), nil
	})

	status, err := client.Status(context.Background(), "5SCENT-x-1")
	require.NoError(t, err)
	require.Equal(t, "http://gateway.test/v2/5SCENT-x-1/status", capturedURL)
	require.Equal(t, "settlement", status.TransactionStatus)
	require.EqualValues(t, 5000, status.GrossAmount)
}

func TestStatusRejectsGarbledAmount(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status_code":"200","order_id":"5SCENT-x-1","gross_amount":"5.000,00","transaction_status":"settlement"}`), nil
	})

	_, err := client.Status(context.Background(), "5SCENT-x-1")
	require.ErrorIs(t, err, ErrMalformedAmount)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeGatewayUnavailable))
}

func TestNewClientRequiresServerKey(t *testing.T) {
	_, err := NewClient(config.GatewayConfig{})
	require.Error(t, err)
}
