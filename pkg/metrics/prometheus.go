package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	accepted  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lastClose *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		accepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autotrader_accepted_total",
				Help: "Values that passed validation, by kind",
			},
			[]string{"kind", "symbol"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autotrader_rejected_total",
				Help: "Values that failed validation, by kind and offending field",
			},
			[]string{"kind", "field"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autotrader_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "autotrader_last_close",
				Help: "Close of the most recent accepted candle per symbol",
			},
			[]string{"symbol"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autotrader_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.accepted, r.rejected, r.errors, r.lastClose, r.latency)
	}
	return r
}

func (r *Recorder) RecordAccepted(kind, symbol string, n int) {
	r.accepted.WithLabelValues(kind, symbol).Add(float64(n))
}

func (r *Recorder) RecordRejected(kind, field string) {
	r.rejected.WithLabelValues(kind, field).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
