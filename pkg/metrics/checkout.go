package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records payment, webhook, and notification outcomes.
type CheckoutMetrics struct {
	providerDuration *prometheus.HistogramVec
	providerCalls    *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	sinkDeliveries   *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_provider_call_duration_seconds",
		Help:    "Duration of payment provider calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_provider_calls_total",
		Help: "Payment provider calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	sinkDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_sink_deliveries_total",
		Help: "Notification sink deliveries by event and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(providerDuration, providerCalls, webhookEvents, sinkDeliveries)
	return &CheckoutMetrics{
		providerDuration: providerDuration,
		providerCalls:    providerCalls,
		webhookEvents:    webhookEvents,
		sinkDeliveries:   sinkDeliveries,
	}
}

// ObserveProviderCall records a provider call with its duration and outcome.
func (c *CheckoutMetrics) ObserveProviderCall(operation string, duration time.Duration, err error) {
	if c == nil || c.providerCalls == nil {
		return
	}
	op := normalizeLabel(operation)
	c.providerDuration.WithLabelValues(op).Observe(duration.Seconds())
	c.providerCalls.WithLabelValues(op, outcomeLabel(err)).Inc()
}

// IncWebhookEvent counts one received webhook event.
func (c *CheckoutMetrics) IncWebhookEvent(eventType, outcome string) {
	if c == nil || c.webhookEvents == nil {
		return
	}
	c.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncSinkDelivery counts one notification sink delivery attempt.
func (c *CheckoutMetrics) IncSinkDelivery(event string, err error) {
	if c == nil || c.sinkDeliveries == nil {
		return
	}
	c.sinkDeliveries.WithLabelValues(normalizeLabel(event), outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
