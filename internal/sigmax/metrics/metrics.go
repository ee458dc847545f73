package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the CityControl handoff. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Outbound StUF messages by SOAP action and outcome
	OutboundMessages *prometheus.CounterVec

	// Outbound send latency by SOAP action
	SendLatency *prometheus.HistogramVec

	// Handoffs (both messages sent) by outcome
	Handoffs *prometheus.CounterVec

	// Inbound status callbacks by outcome: applied, fallback, rejected, not_found
	InboundCallbacks *prometheus.CounterVec

	RoundtripsBackfilled prometheus.Counter

	StuckSignalsFailed prometheus.Counter
}

// New registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OutboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_sigmax_outbound_messages_total",
			Help: "Total StUF messages sent to CityControl by SOAP action and outcome",
		}, []string{"action", "outcome"}),

		SendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signals_sigmax_send_duration_seconds",
			Help:    "Duration of outbound StUF sends including acknowledgement parsing",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"action"}),

		Handoffs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_sigmax_handoffs_total",
			Help: "Total signal handoffs to CityControl by outcome",
		}, []string{"outcome"}),

		InboundCallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signals_sigmax_inbound_callbacks_total",
			Help: "Total actualiseerZaakstatus callbacks by outcome",
		}, []string{"outcome"}),

		RoundtripsBackfilled: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_sigmax_roundtrips_backfilled_total",
			Help: "Total roundtrip records backfilled from CityControl callbacks",
		}),

		StuckSignalsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_sigmax_stuck_signals_failed_total",
			Help: "Total signals moved to send failed after waiting too long in ready to send",
		}),
	}
}

// ObserveSend implements transport.Observer.
func (m *Metrics) ObserveSend(action, outcome string, d time.Duration) {
	if m != nil {
		m.OutboundMessages.WithLabelValues(action, outcome).Inc()
		m.SendLatency.WithLabelValues(action).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementHandoff(outcome string) {
	if m != nil {
		m.Handoffs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementCallback(outcome string) {
	if m != nil {
		m.InboundCallbacks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddBackfilled(n int) {
	if m != nil && n > 0 {
		m.RoundtripsBackfilled.Add(float64(n))
	}
}

func (m *Metrics) AddStuckFailed(n int) {
	if m != nil && n > 0 {
		m.StuckSignalsFailed.Add(float64(n))
	}
}
