package prometheus

import (
	"net/http"

	gateway "github.com/guardian/gateway-sub002"
	"github.com/guardian/gateway-sub002/metrics/export/internaldefs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() gateway.MetricsSnapshot
	AuditDropped() uint64
}

// Collector exposes the engine counters to a Prometheus registry. The
// engine already keeps its own atomic counters, so Collect reads one
// snapshot per scrape and reports const metrics instead of mirroring the
// counts into client_golang counters.
type Collector struct {
	source  metricsSource
	descs   map[gateway.MetricID]*prometheus.Desc
	dropped *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from the given engine.
func NewCollector(engine *gateway.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource creates a collector from a custom source.
func NewCollectorFromSource(source metricsSource) *Collector {
	descs := make(map[gateway.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		descs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return &Collector{
		source: source,
		descs:  descs,
		dropped: prometheus.NewDesc(
			"gateway_audit_dropped_total",
			"Dropped audit events due to dispatcher backpressure.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range internaldefs.CounterDefs {
		ch <- c.descs[def.ID]
	}
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.MetricsSnapshot()
	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(c.descs[def.ID], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

// Handler returns an http.Handler serving the engine counters in
// Prometheus exposition format.
func Handler(source metricsSource) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollectorFromSource(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
