package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncPlaceCreated()                     {}
func (n *NoopRecorder) IncPlaceUpdated()                     {}
func (n *NoopRecorder) IncPlaceDeleted()                     {}
func (n *NoopRecorder) IncSignup()                           {}
func (n *NoopRecorder) IncAuthFailure(string)                {}
func (n *NoopRecorder) ObserveGeocode(string, time.Duration) {}
func (n *NoopRecorder) IncImageCleanup(string)               {}
