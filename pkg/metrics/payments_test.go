package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.ObserveGateway("charge", 120*time.Millisecond, nil)
	m.ObserveGateway("charge", 80*time.Millisecond, errors.New("timeout"))
	m.IncReconcile("webhook", "applied")
	m.IncReconcile("webhook", "applied")
	m.IncConflict()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "payment_gateway_errors_total", "operation", "charge"); err != nil {
		t.Fatalf("fetch gateway errors: %v", err)
	} else if got != 1 {
		t.Fatalf("expected gateway errors=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "payment_reconcile_total", "source", "webhook"); err != nil {
		t.Fatalf("fetch reconcile: %v", err)
	} else if got != 2 {
		t.Fatalf("expected reconcile=2, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "payment_gateway_request_seconds", "operation", "charge"); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f", got)
	}
}

func TestPaymentMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewPaymentMetrics(nil)
	m.ObserveGateway("status", time.Second, nil)
	m.IncReconcile("poll", "noop")
	m.IncConflict()

	var nilMetrics *PaymentMetrics
	nilMetrics.IncConflict()
}
