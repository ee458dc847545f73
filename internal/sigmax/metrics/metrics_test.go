package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveSend("creeerZaak", "ok", 120*time.Millisecond)
	m.ObserveSend("creeerZaak", "ok", 80*time.Millisecond)
	m.IncrementCallback("fallback")
	m.AddBackfilled(3)
	m.AddBackfilled(0)
	m.AddStuckFailed(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboundMessages.WithLabelValues("creeerZaak", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundCallbacks.WithLabelValues("fallback")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RoundtripsBackfilled))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StuckSignalsFailed))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSend("a", "ok", time.Second)
		m.IncrementHandoff("ok")
		m.IncrementCallback("applied")
		m.AddBackfilled(1)
		m.AddStuckFailed(1)
	})
}
