package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks gateway calls and reconciliation outcomes.
type PaymentMetrics struct {
	gatewayLatency *prometheus.HistogramVec
	gatewayErrors  *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
	conflicts      prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_seconds",
		Help:    "Latency of payment gateway requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	gatewayErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_errors_total",
		Help: "Payment gateway requests that failed after retry.",
	}, []string{"operation"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_total",
		Help: "Reconciliation attempts by source and outcome.",
	}, []string{"source", "outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_conflicts_total",
		Help: "Gateway events that contradicted a terminal payment.",
	})
	reg.MustRegister(gatewayLatency, gatewayErrors, reconciled, conflicts)
	return &PaymentMetrics{
		gatewayLatency: gatewayLatency,
		gatewayErrors:  gatewayErrors,
		reconciled:     reconciled,
		conflicts:      conflicts,
	}
}

// ObserveGateway records one gateway call and whether it failed.
func (p *PaymentMetrics) ObserveGateway(operation string, duration time.Duration, err error) {
	if p == nil || p.gatewayLatency == nil {
		return
	}
	op := normalizeLabel(operation)
	p.gatewayLatency.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		p.gatewayErrors.WithLabelValues(op).Inc()
	}
}

// IncReconcile counts a reconciliation outcome such as applied, noop or conflict.
func (p *PaymentMetrics) IncReconcile(source, outcome string) {
	if p == nil || p.reconciled == nil {
		return
	}
	p.reconciled.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// IncConflict counts a recorded payment conflict.
func (p *PaymentMetrics) IncConflict() {
	if p == nil || p.conflicts == nil {
		return
	}
	p.conflicts.Inc()
}
