// Package metrics exposes recurring engine counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fintrack"

// Recorder implements services.Metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	instancesCreated   *prometheus.CounterVec
	templateFailures   *prometheus.CounterVec
	sweeps             *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec
	instancesSkipped   prometheus.Counter
	templatesDisabled  prometheus.Counter
	lastSweepProcessed *prometheus.GaugeVec
	httpRequests       *prometheus.HistogramVec
}

// New creates a Recorder on its own registry, with Go runtime and process
// collectors included.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		instancesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "instances_created_total",
			Help:      "Instances materialized from recurring templates.",
		}, []string{"kind"}),
		templateFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "template_failures_total",
			Help:      "Templates that failed during a sweep, by error type.",
		}, []string{"error_type"}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "sweeps_total",
			Help:      "Completed sweeps, by scope.",
		}, []string{"scope"}),
		sweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of completed sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"scope"}),
		instancesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "instances_skipped_total",
			Help:      "Candidates that were already materialized.",
		}),
		templatesDisabled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "templates_deactivated_total",
			Help:      "Templates deactivated after reaching their end.",
		}),
		lastSweepProcessed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recurring",
			Name:      "last_sweep_templates",
			Help:      "Templates processed by the most recent sweep, by scope class.",
		}, []string{"scope"}),
		httpRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
}

func (r *Recorder) InstanceCreated(kind string) {
	if r == nil {
		return
	}
	r.instancesCreated.WithLabelValues(kind).Inc()
}

func (r *Recorder) TemplateFailed(errorType string) {
	if r == nil {
		return
	}
	r.templateFailures.WithLabelValues(errorType).Inc()
}

// SweepCompleted records one finished sweep. Per-user scopes are folded into
// a single "user" label to keep cardinality bounded.
func (r *Recorder) SweepCompleted(scope string, d time.Duration, processed, created, skipped, deactivated, failed int) {
	if r == nil {
		return
	}
	label := scopeLabel(scope)
	r.sweeps.WithLabelValues(label).Inc()
	r.sweepDuration.WithLabelValues(label).Observe(d.Seconds())
	r.instancesSkipped.Add(float64(skipped))
	r.templatesDisabled.Add(float64(deactivated))
	r.lastSweepProcessed.WithLabelValues(label).Set(float64(processed))
}

// RequestObserved records one served HTTP request.
func (r *Recorder) RequestObserved(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func scopeLabel(scope string) string {
	if scope == "all" {
		return "all"
	}
	return "user"
}
