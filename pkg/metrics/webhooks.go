package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records reconciliation outcomes for payment webhook events.
type WebhookMetrics struct {
	processed        *prometheus.CounterVec
	failed           *prometheus.CounterVec
	customerMismatch prometheus.Counter
	renewals         prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Successfully reconciled webhook events.",
	}, []string{"type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook events whose reconciliation aborted.",
	}, []string{"type"})
	customerMismatch := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_customer_ref_mismatch",
		Help: "Events claiming a different processor customer than the one stored for the user.",
	})
	renewals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_subscription_renewals",
		Help: "Subscription invoice payments observed.",
	})
	reg.MustRegister(processed, failed, customerMismatch, renewals)
	return &WebhookMetrics{
		processed:        processed,
		failed:           failed,
		customerMismatch: customerMismatch,
		renewals:         renewals,
	}
}

// IncProcessed increments the processed counter for the event type.
func (m *WebhookMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (m *WebhookMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncCustomerMismatch counts a refused customer-reference overwrite.
func (m *WebhookMetrics) IncCustomerMismatch() {
	if m == nil || m.customerMismatch == nil {
		return
	}
	m.customerMismatch.Inc()
}

// CustomerMismatchCounter returns the mismatch counter.
func (m *WebhookMetrics) CustomerMismatchCounter() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.customerMismatch
}

// IncRenewal counts an observed subscription renewal invoice.
func (m *WebhookMetrics) IncRenewal() {
	if m == nil || m.renewals == nil {
		return
	}
	m.renewals.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
