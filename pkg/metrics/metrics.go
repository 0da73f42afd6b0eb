// Package metrics exposes Prometheus collectors for the job pipeline:
// publishes by durability, consumer outcomes and handler latency, provider
// retries and gate occupancy.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/seoflow/pkg/queue"
	"github.com/dmitrymomot/seoflow/pkg/retry"
)

const namespace = "seoflow"

// Publish modes used as the "mode" label.
const (
	ModeDurable  = "durable"
	ModeFallback = "fallback"
)

// Recorder owns the collectors registered on one registry.
type Recorder struct {
	published       *prometheus.CounterVec
	consumed        *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	gateInFlight    *prometheus.GaugeVec
	redriven        *prometheus.CounterVec
}

var _ queue.MetricsRecorder = (*Recorder)(nil)

// New registers the collectors on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_published_total",
			Help:      "Jobs handed to the publisher, by type and whether they reached the broker.",
		}, []string{"type", "mode"}),
		consumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_consumed_total",
			Help:      "Deliveries settled by the consumer, by type and outcome.",
		}, []string{"type", "outcome"}),
		handlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_handler_duration_seconds",
			Help:      "Time from delivery to settlement.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"type"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retried provider calls, by label.",
		}, []string{"label"}),
		gateInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_in_flight",
			Help:      "Permits currently held per dependency class.",
		}, []string{"class"}),
		redriven: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_letters_redriven_total",
			Help:      "Dead-lettered messages seen by the redriver, by result.",
		}, []string{"result"}),
	}
}

// ObservePublish implements queue.MetricsRecorder.
func (r *Recorder) ObservePublish(jobType string, durable bool) {
	mode := ModeDurable
	if !durable {
		mode = ModeFallback
	}
	r.published.WithLabelValues(jobType, mode).Inc()
}

// ObserveConsume implements queue.MetricsRecorder.
func (r *Recorder) ObserveConsume(jobType, outcome string, d time.Duration) {
	r.consumed.WithLabelValues(jobType, outcome).Inc()
	r.handlerDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

// RetryObserver returns a retry.Policy OnRetry hook counting retries for label.
func (r *Recorder) RetryObserver(label string) func(retry.Attempt) {
	c := r.retries.WithLabelValues(label)
	return func(retry.Attempt) { c.Inc() }
}

// GateObserver is passed to gate.WithObserver.
func (r *Recorder) GateObserver() func(class string, inFlight int) {
	return func(class string, inFlight int) {
		r.gateInFlight.WithLabelValues(class).Set(float64(inFlight))
	}
}

// ObserveRedrive adds one redrive pass to the counters.
func (r *Recorder) ObserveRedrive(report queue.RedriveReport) {
	r.redriven.WithLabelValues("republished").Add(float64(report.Republished))
	r.redriven.WithLabelValues("parked").Add(float64(report.Parked))
	r.redriven.WithLabelValues("malformed").Add(float64(report.Malformed))
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
