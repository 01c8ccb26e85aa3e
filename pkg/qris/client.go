// Package qris is the outbound client for the QRIS payment gateway's core API.
package qris

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.sandbox.midtrans.com"
	defaultTimeout              = 10 * time.Second
	defaultRetryBackoff         = 500 * time.Millisecond
	responseBodyReadLimit int64 = 1024
	paymentTypeQRIS             = "qris"
)

var errServerKeyRequired = errors.New("gateway server key is required")

// Gateway is the surface the payment services depend on.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	Status(ctx context.Context, externalReference string) (*TransactionStatus, error)
}

// Client talks to the gateway's charge and status endpoints.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	serverKey    string
	acquirer     string
	timeout      time.Duration
	retryBackoff time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRetryBackoff overrides the pause before the single retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBackoff = d
		}
	}
}

// NewClient builds the gateway client from configuration.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.ServerKey)
	if key == "" {
		return nil, errServerKeyRequired
	}

	client := &Client{
		serverKey:    key,
		baseURL:      strings.TrimSpace(cfg.BaseURL),
		acquirer:     strings.TrimSpace(cfg.Acquirer),
		timeout:      cfg.Timeout,
		retryBackoff: cfg.RetryBackoff,
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.timeout <= 0 {
		client.timeout = defaultTimeout
	}
	if client.retryBackoff <= 0 {
		client.retryBackoff = defaultRetryBackoff
	}
	client.httpClient = &http.Client{Timeout: client.timeout}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ItemDetail is one line shown on the gateway's payment page.
type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// CustomerDetails is optional payer information.
type CustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ChargeRequest is a QRIS charge for one order.
type ChargeRequest struct {
	ExternalReference string
	GrossAmount       int64
	Items             []ItemDetail
	Customer          *CustomerDetails
}

// ChargeResponse is the normalized gateway answer to a charge.
type ChargeResponse struct {
	TransactionID     string
	ExternalReference string
	TransactionStatus string
	QRString          string
	QRImageURL        string
	GrossAmount       int64
	TransactionTime   *time.Time
}

// TransactionStatus is the gateway's current view of a transaction.
type TransactionStatus struct {
	TransactionID     string
	ExternalReference string
	TransactionStatus string
	StatusCode        string
	GrossAmount       int64
	FraudStatus       string
	TransactionTime   *time.Time
}

type chargePayload struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	QRIS               *qrisOptions       `json:"qris,omitempty"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type qrisOptions struct {
	Acquirer string `json:"acquirer"`
}

type apiResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	FraudStatus       string `json:"fraud_status"`
	QRString          string `json:"qr_string"`
	Actions           []struct {
		Name   string `json:"name"`
		Method string `json:"method"`
		URL    string `json:"url"`
	} `json:"actions"`
}

// Charge creates a QRIS transaction. Transport failures and 5xx answers are
// retried once; every failure surfaces as GATEWAY_UNAVAILABLE.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "payment gateway not configured")
	}
	if strings.TrimSpace(req.ExternalReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	if req.GrossAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}

	payload := chargePayload{
		PaymentType: paymentTypeQRIS,
		TransactionDetails: transactionDetails{
			OrderID:     req.ExternalReference,
			GrossAmount: req.GrossAmount,
		},
		ItemDetails:     req.Items,
		CustomerDetails: req.Customer,
	}
	if c.acquirer != "" {
		payload.QRIS = &qrisOptions{Acquirer: c.acquirer}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "marshal charge request")
	}

	resp, err := c.do(ctx, http.MethodPost, c.buildURL("v2/charge"), body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qris charge failed")
	}

	gross, err := ParseAmount(resp.GrossAmount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qris charge response")
	}
	out := &ChargeResponse{
		TransactionID:     resp.TransactionID,
		ExternalReference: resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		QRString:          resp.QRString,
		GrossAmount:       gross,
		TransactionTime:   parseTransactionTime(resp.TransactionTime),
	}
	for _, action := range resp.Actions {
		if action.Name == "generate-qr-code" {
			out.QRImageURL = action.URL
		}
	}
	return out, nil
}

// Status fetches the current transaction status for a synthetic order id.
func (c *Client) Status(ctx context.Context, externalReference string) (*TransactionStatus, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "payment gateway not configured")
	}
	trimmed := strings.TrimSpace(externalReference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	resp, err := c.do(ctx, http.MethodGet, c.buildURL("v2/"+url.PathEscape(trimmed)+"/status"), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qris status failed")
	}
	gross, err := ParseAmount(resp.GrossAmount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qris status response")
	}
	return &TransactionStatus{
		TransactionID:     resp.TransactionID,
		ExternalReference: resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		StatusCode:        resp.StatusCode,
		GrossAmount:       gross,
		FraudStatus:       resp.FraudStatus,
		TransactionTime:   parseTransactionTime(resp.TransactionTime),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*apiResponse, error) {
	var out *apiResponse
	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.attempt(ctx, method, endpoint, body)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			return retry.RetryableError(err)
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, body []byte) (*apiResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, endpoint, reader)
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.SetBasicAuth(c.serverKey, "")
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, &permanentError{err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &permanentError{err: fmt.Errorf("decode response: %w", err)}
	}
	// The gateway reports business errors inside a 200 body.
	if code, convErr := strconv.Atoi(apiResp.StatusCode); convErr == nil && code >= http.StatusBadRequest {
		err := fmt.Errorf("gateway status %s: %s", apiResp.StatusCode, apiResp.StatusMessage)
		if code >= http.StatusInternalServerError {
			return nil, err
		}
		return nil, &permanentError{err: err}
	}
	return &apiResp, nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

// ErrMalformedAmount marks a gross_amount the gateway sent but that is not a
// whole, non-negative rupiah value.
var ErrMalformedAmount = errors.New("malformed gross amount")

// ParseAmount reads the gateway's decimal string amounts ("210000.00"). An
// empty string means the amount was not sent and yields 0 without error.
func ParseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, raw)
	}
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, raw)
	}
	return amount.IntPart(), nil
}

var jakarta = time.FixedZone("WIB", 7*60*60)

func parseTransactionTime(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", raw, jakarta)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}
