package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "placeshare"

// PrometheusRecorder exports metrics through its own Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	placeOps        *prometheus.CounterVec
	signups         prometheus.Counter
	authFailures    *prometheus.CounterVec
	geocodeDuration *prometheus.HistogramVec
	imageCleanups   *prometheus.CounterVec
}

// NewPrometheus creates a recorder backed by a fresh registry that also
// carries the Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		placeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_operations_total",
			Help:      "Committed place mutations by operation.",
		}, []string{"op"}),
		signups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Accounts created.",
		}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected authentication attempts by reason.",
		}, []string{"reason"}),
		geocodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_duration_seconds",
			Help:      "Geocoding latency by result.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"result"}),
		imageCleanups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_cleanups_total",
			Help:      "Uploaded image removals by outcome.",
		}, []string{"status"}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *PrometheusRecorder) IncPlaceCreated() { p.placeOps.WithLabelValues("create").Inc() }
func (p *PrometheusRecorder) IncPlaceUpdated() { p.placeOps.WithLabelValues("update").Inc() }
func (p *PrometheusRecorder) IncPlaceDeleted() { p.placeOps.WithLabelValues("delete").Inc() }
func (p *PrometheusRecorder) IncSignup()       { p.signups.Inc() }

func (p *PrometheusRecorder) IncAuthFailure(reason string) {
	p.authFailures.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) ObserveGeocode(result string, duration time.Duration) {
	p.geocodeDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncImageCleanup(status string) {
	p.imageCleanups.WithLabelValues(status).Inc()
}
