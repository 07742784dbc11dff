package services

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGateMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGateMetrics(reg)

	m.Entry("short_link")
	m.Entry("short_link")
	m.Verification("ok")
	m.Release("invalid_token")
	m.Resolution("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.entries.WithLabelValues("short_link")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("invalid_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("not_found")))
}

func TestGateMetrics_NilIsNoop(t *testing.T) {
	var m *GateMetrics
	assert.NotPanics(t, func() {
		m.Entry("safe_link")
		m.Verification("ok")
		m.Release("ok")
		m.Resolution("ok")
	})
}
