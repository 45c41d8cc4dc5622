package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/placeshare/placeshare/internal/metrics"
)

// exposer is implemented by recorders that serve their own exposition.
type exposer interface {
	Handler() http.Handler
}

// MetricsHandler exposes the recorder's metrics at /metrics.
type MetricsHandler struct {
	recorder metrics.Recorder
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(recorder metrics.Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// Metrics returns metrics in Prometheus exposition format. The Prometheus
// recorder serves its registry; the in-memory recorder is rendered from a snapshot.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if e, ok := h.recorder.(exposer); ok {
		e.Handler().ServeHTTP(w, r)
		return
	}

	snapshotter, ok := h.recorder.(metrics.Snapshotter)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "placeshare_place_operations_total{op=\"create\"} %d\n", snap.PlacesCreated)
	writeMetric(w, "placeshare_place_operations_total{op=\"update\"} %d\n", snap.PlacesUpdated)
	writeMetric(w, "placeshare_place_operations_total{op=\"delete\"} %d\n", snap.PlacesDeleted)
	writeMetric(w, "placeshare_signups_total %d\n", snap.Signups)

	writeLabeled(w, "placeshare_auth_failures_total", "reason", snap.AuthFailures)
	writeLabeled(w, "placeshare_geocode_requests_total", "result", snap.Geocodes)
	writeLabeled(w, "placeshare_image_cleanups_total", "status", snap.ImageCleanups)
}

func writeLabeled(w http.ResponseWriter, name, label string, counts map[string]uint64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, counts[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
