package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

const namespace = "stratswitch"

// Registry holds the controller's Prometheus metrics.
type Registry struct {
	reg *prometheus.Registry

	// Cycle metrics
	CycleDuration *prometheus.HistogramVec
	CycleOutcomes *prometheus.CounterVec

	// Pair evaluation metrics
	PairsSkipped *prometheus.CounterVec
	PairScore    *prometheus.GaugeVec

	// Switch metrics
	Switches    *prometheus.CounterVec
	ActiveScore prometheus.Gauge
}

// NewRegistry creates a registry with every metric registered on a private
// prometheus.Registry plus the Go and process collectors.
func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of evaluation cycles in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		CycleOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total evaluation cycles by outcome",
			},
			[]string{"outcome"},
		),

		PairsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pairs_skipped_total",
				Help:      "Pairs or instruments excluded from ranking by reason",
			},
			[]string{"reason"},
		),

		PairScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pair_composite_score",
				Help:      "Latest composite score per strategy and instrument (0.0 to 1.0)",
			},
			[]string{"strategy", "instrument"},
		),

		Switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "switches_total",
				Help:      "Committed pairing switches by action",
			},
			[]string{"action"},
		),

		ActiveScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_pairing_score",
				Help:      "Composite score of the live pairing when it was adopted",
			},
		),
	}

	m.reg.MustRegister(
		m.CycleDuration,
		m.CycleOutcomes,
		m.PairsSkipped,
		m.PairScore,
		m.Switches,
		m.ActiveScore,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log.Debug().Msg("Prometheus metrics registry initialized")
	return m
}

// Gatherer exposes the underlying registry for tests and custom handlers.
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveCycle records one finished cycle.
func (m *Registry) ObserveCycle(outcome string, d time.Duration) {
	m.CycleDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.CycleOutcomes.WithLabelValues(outcome).Inc()
}

// PairSkipped counts a skipped pair.
func (m *Registry) PairSkipped(reason string) {
	m.PairsSkipped.WithLabelValues(reason).Inc()
}

// PairScored sets the latest composite for a pairing.
func (m *Registry) PairScored(strategyID, instrument string, composite float64) {
	m.PairScore.WithLabelValues(strategyID, instrument).Set(composite)
}

// Switched records a committed switch and the adopted score.
func (m *Registry) Switched(action string, score float64) {
	m.Switches.WithLabelValues(action).Inc()
	m.ActiveScore.Set(score)
}

// ActivePairingScore reads back the active score gauge.
func (m *Registry) ActivePairingScore() float64 {
	metric := &io_prometheus_client.Metric{}
	if err := m.ActiveScore.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

// SwitchCount sums committed switches across actions.
func (m *Registry) SwitchCount(actions ...string) float64 {
	metric := &io_prometheus_client.Metric{}
	total := 0.0
	for _, action := range actions {
		counter, err := m.Switches.GetMetricWithLabelValues(action)
		if err != nil {
			continue
		}
		if err := counter.Write(metric); err == nil {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
