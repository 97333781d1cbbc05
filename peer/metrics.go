package peer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are the per-process counters a peer updates on its hot paths.
// Grounded on prometheus/client_golang directly (no teacher usage to
// imitate: the retrieval pack's only metrics exporter, golang-build's
// cmd/coordinator/internal/metrics, wraps opencensus views rather than
// exposing raw client_golang collectors, the closest direct fit in the
// pack's dependency set is the go.mod-listed client_golang itself).
type metrics struct {
	callsStarted      prometheus.Counter
	callsSucceeded    prometheus.Counter
	callsFailed       prometheus.Counter
	callsTimedOut     prometheus.Counter
	sendsIncoming     prometheus.Counter
	callsIncoming     prometheus.Counter
	backpressureGauge prometheus.Gauge
	closed            prometheus.Counter
}

// newMetrics registers one set of collectors labeled by peer name under
// reg. A nil reg disables metrics entirely: every method on *metrics is
// nil-safe so callers never need to branch on whether metrics are on.
func newMetrics(reg prometheus.Registerer, peerName string) *metrics {
	if reg == nil {
		return nil
	}
	labels := prometheus.Labels{"peer": peerName}
	f := promauto.With(reg)
	return &metrics{
		callsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "calls_started_total",
			ConstLabels: labels,
		}),
		callsSucceeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "calls_succeeded_total",
			ConstLabels: labels,
		}),
		callsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "calls_failed_total",
			ConstLabels: labels,
		}),
		callsTimedOut: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "calls_timed_out_total",
			ConstLabels: labels,
		}),
		sendsIncoming: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "sends_incoming_total",
			ConstLabels: labels,
		}),
		callsIncoming: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "calls_incoming_total",
			ConstLabels: labels,
		}),
		backpressureGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "backpressure_inflight",
			ConstLabels: labels,
		}),
		closed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "peerlink", Subsystem: "peer", Name: "closed_total",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) incCallStarted() {
	if m != nil {
		m.callsStarted.Inc()
	}
}

func (m *metrics) incCallSucceeded() {
	if m != nil {
		m.callsSucceeded.Inc()
	}
}

func (m *metrics) incCallFailed() {
	if m != nil {
		m.callsFailed.Inc()
	}
}

func (m *metrics) incCallTimedOut() {
	if m != nil {
		m.callsTimedOut.Inc()
	}
}

func (m *metrics) incSendIncoming() {
	if m != nil {
		m.sendsIncoming.Inc()
	}
}

func (m *metrics) incCallIncoming() {
	if m != nil {
		m.callsIncoming.Inc()
	}
}

func (m *metrics) setBackpressureInflight(n int) {
	if m != nil {
		m.backpressureGauge.Set(float64(n))
	}
}

func (m *metrics) incClosed() {
	if m != nil {
		m.closed.Inc()
	}
}
