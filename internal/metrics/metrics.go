// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Auth failure reasons.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonExpiredToken = "expired_token"
	ReasonCredentials  = "invalid_credentials"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory for tests.
type Recorder interface {
	// Place management metrics
	IncPlaceCreated()
	IncPlaceUpdated()
	IncPlaceDeleted()

	// Account metrics
	IncSignup()
	IncAuthFailure(reason string)

	// Geocoding metrics
	ObserveGeocode(result string, duration time.Duration) // result: "success", "not_found", "error", "rejected"

	// Image cleanup metrics
	IncImageCleanup(status string) // status: "removed", "failed", "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
