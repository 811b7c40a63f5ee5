package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusEmitter mirrors quota events into Prometheus metrics.
type PrometheusEmitter struct {
	vectors     prometheus.Gauge
	percentUsed prometheus.Gauge
	events      *prometheus.CounterVec
}

// NewPrometheusEmitter creates the quota metrics and registers them with reg.
func NewPrometheusEmitter(reg prometheus.Registerer) (*PrometheusEmitter, error) {
	p := &PrometheusEmitter{
		vectors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragquota_quota_vectors",
				Help: "Number of vectors currently counted against the quota",
			},
		),
		percentUsed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragquota_quota_percent_used",
				Help: "Percentage of the vector quota in use",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragquota_quota_events_total",
				Help: "Total number of quota events by kind",
			},
			[]string{"kind"},
		),
	}
	for _, c := range []prometheus.Collector{p.vectors, p.percentUsed, p.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Emit updates the gauges and counts the event by kind.
func (p *PrometheusEmitter) Emit(e Event) {
	p.vectors.Set(float64(e.Count))
	p.percentUsed.Set(e.PercentUsed)
	p.events.WithLabelValues(e.Kind()).Inc()
}
