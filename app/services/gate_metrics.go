package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GateMetrics counts gate and short link outcomes. A nil *GateMetrics records nothing.
type GateMetrics struct {
	entries       *prometheus.CounterVec
	verifications *prometheus.CounterVec
	releases      *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
}

// NewGateMetrics registers the gate counters with reg
func NewGateMetrics(reg prometheus.Registerer) *GateMetrics {
	factory := promauto.With(reg)
	return &GateMetrics{
		entries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_entries_total",
				Help: "Gate entries partitioned by entry point",
			},
			[]string{"source"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_verifications_total",
				Help: "Verify attempts partitioned by result",
			},
			[]string{"result"},
		),
		releases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_releases_total",
				Help: "Release attempts partitioned by result",
			},
			[]string{"result"},
		),
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "short_link_resolutions_total",
				Help: "Short code lookups partitioned by result",
			},
			[]string{"result"},
		),
	}
}

func (m *GateMetrics) Entry(source string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(source).Inc()
}

func (m *GateMetrics) Verification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *GateMetrics) Release(result string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(result).Inc()
}

func (m *GateMetrics) Resolution(result string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(result).Inc()
}
