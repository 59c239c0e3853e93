// Package metrics exposes Prometheus collectors for valuation, snapshot and
// market-data activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "folio"

// Collector groups the service's Prometheus metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	portfolioValue   prometheus.Gauge
	sleeveValue      *prometheus.GaugeVec
	sleeveWeight     *prometheus.GaugeVec
	snapshotsTotal   *prometheus.CounterVec
	observations     *prometheus.CounterVec
	refreshErrors    *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global registration.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		portfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "total_value",
			Help:      "Latest computed portfolio value in the reporting currency",
		}),
		sleeveValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "sleeve_value",
			Help:      "Latest computed value per sleeve",
		}, []string{"asset_class"}),
		sleeveWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "sleeve_weight",
			Help:      "Latest computed weight per sleeve",
		}, []string{"asset_class"}),
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "captures_total",
			Help:      "Snapshot capture runs by outcome",
		}, []string{"outcome"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "observations_total",
			Help:      "Price and exchange rate observations written",
		}, []string{"kind"}),
		refreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "refresh_errors_total",
			Help:      "Price refresh failures by source",
		}, []string{"source"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Outbound market-data requests by client and outcome",
		}, []string{"client", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.portfolioValue,
			c.sleeveValue,
			c.sleeveWeight,
			c.snapshotsTotal,
			c.observations,
			c.refreshErrors,
			c.upstreamRequests,
		)
	}

	return c
}

// ObserveValuation records the latest total and per-sleeve figures
func (c *Collector) ObserveValuation(total float64, values, weights map[string]float64) {
	if c == nil {
		return
	}
	c.portfolioValue.Set(total)
	c.sleeveValue.Reset()
	c.sleeveWeight.Reset()
	for sleeve, v := range values {
		c.sleeveValue.WithLabelValues(sleeve).Set(v)
	}
	for sleeve, w := range weights {
		c.sleeveWeight.WithLabelValues(sleeve).Set(w)
	}
}

// SnapshotCaptured counts a snapshot run
func (c *Collector) SnapshotCaptured(ok bool) {
	if c == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.snapshotsTotal.WithLabelValues(outcome).Inc()
}

// ObservationsWritten counts appended observations of a kind ("price", "rate")
func (c *Collector) ObservationsWritten(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.observations.WithLabelValues(kind).Add(float64(n))
}

// RefreshFailed counts a failed refresh step
func (c *Collector) RefreshFailed(source string) {
	if c == nil {
		return
	}
	c.refreshErrors.WithLabelValues(source).Inc()
}

// UpstreamRequest counts an outbound request
func (c *Collector) UpstreamRequest(client, outcome string) {
	if c == nil {
		return
	}
	c.upstreamRequests.WithLabelValues(client, outcome).Inc()
}
