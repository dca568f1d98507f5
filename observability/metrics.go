package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for the trigger engine, backed by any
// go-utils MetricFactory (e.g. the forge-managed metrics system via
// fapp.Metrics()).
type Metrics struct {
	EventsFetchedTotal   gu.Counter
	DeliveriesTotal      gu.Counter
	DeliveryLatency      gu.Histogram
	EventsMaterialized   gu.Counter
	HTTPPermitsInUse     gu.Gauge
	PendingEvents        gu.Gauge
	LocksSweptTotal      gu.Counter
	SaturationWarnsTotal gu.Counter
}

// NewMetrics creates trigger metric instruments using the supplied factory.
// Pass fapp.Metrics() from a forge extension, or metrics.NewMetricsCollector()
// for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsFetchedTotal:   factory.Counter("trigger_events_fetched_total"),
		DeliveriesTotal:      factory.Counter("trigger_deliveries_total"),
		DeliveryLatency:      factory.Histogram("trigger_delivery_latency_seconds"),
		EventsMaterialized:   factory.Counter("trigger_events_materialized_total"),
		HTTPPermitsInUse:     factory.Gauge("trigger_http_permits_in_use"),
		PendingEvents:        factory.Gauge("trigger_pending_events"),
		LocksSweptTotal:      factory.Counter("trigger_locks_swept_total"),
		SaturationWarnsTotal: factory.Counter("trigger_saturation_warns_total"),
	}
}

// RecordDelivery records a delivery attempt with the given queue, result
// status and latency.
func (m *Metrics) RecordDelivery(queue, status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"queue": queue, "status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordFetch records a lease batch for the given queue.
func (m *Metrics) RecordFetch(queue string, n int) {
	m.EventsFetchedTotal.WithLabels(map[string]string{"queue": queue}).Add(float64(n))
}
