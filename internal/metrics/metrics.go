// Package metrics turns connection events into Prometheus series.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ratio1/odata_sdk_go/pkg/connection"
)

// Recorder counts requests by outcome and observes their latency. It
// implements connection.Notifier.
type Recorder struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Aborts   *prometheus.CounterVec
}

var _ connection.Notifier = (*Recorder)(nil)

// NewRecorder registers the series on reg. A nil reg uses the default registerer.
func NewRecorder(reg prometheus.Registerer, dialect string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"dialect": dialect}
	factory := promauto.With(reg)
	return &Recorder{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "odata_client_requests_total",
			Help:        "Requests completed by the resource client, by method and status.",
			ConstLabels: labels,
		}, []string{"method", "status", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "odata_client_request_duration_seconds",
			Help:        "Latency of resource requests.",
			ConstLabels: labels,
			Buckets:     []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "outcome"}),
		Aborts: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "odata_client_aborts_total",
			Help:        "Requests cancelled before they completed.",
			ConstLabels: labels,
		}, []string{"method"}),
	}
}

// Notify records e.
func (r *Recorder) Notify(e connection.Event) {
	outcome := outcomeOf(e.Kind)
	if e.Kind == connection.EventAbort {
		r.Aborts.WithLabelValues(e.Method).Inc()
	}
	r.Requests.WithLabelValues(e.Method, strconv.Itoa(e.StatusCode), outcome).Inc()
	r.Duration.WithLabelValues(e.Method, outcome).Observe(e.Duration.Seconds())
}

func outcomeOf(k connection.EventKind) string {
	switch k {
	case connection.EventComplete:
		return "success"
	case connection.EventAbort:
		return "aborted"
	default:
		return "failure"
	}
}
