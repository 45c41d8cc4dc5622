package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PlacesCreated uint64
	PlacesUpdated uint64
	PlacesDeleted uint64
	Signups       uint64
	AuthFailures  map[string]uint64
	Geocodes      map[string]uint64
	ImageCleanups map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	placesCreated uint64
	placesUpdated uint64
	placesDeleted uint64
	signups       uint64

	mu            sync.Mutex
	authFailures  map[string]uint64
	geocodes      map[string]uint64
	imageCleanups map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		authFailures:  make(map[string]uint64),
		geocodes:      make(map[string]uint64),
		imageCleanups: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		PlacesCreated: atomic.LoadUint64(&m.placesCreated),
		PlacesUpdated: atomic.LoadUint64(&m.placesUpdated),
		PlacesDeleted: atomic.LoadUint64(&m.placesDeleted),
		Signups:       atomic.LoadUint64(&m.signups),
		AuthFailures:  copyCounts(m.authFailures),
		Geocodes:      copyCounts(m.geocodes),
		ImageCleanups: copyCounts(m.imageCleanups),
	}
}

// IncPlaceCreated increments place created counter.
func (m *InMemoryRecorder) IncPlaceCreated() {
	atomic.AddUint64(&m.placesCreated, 1)
}

// IncPlaceUpdated increments place updated counter.
func (m *InMemoryRecorder) IncPlaceUpdated() {
	atomic.AddUint64(&m.placesUpdated, 1)
}

// IncPlaceDeleted increments place deleted counter.
func (m *InMemoryRecorder) IncPlaceDeleted() {
	atomic.AddUint64(&m.placesDeleted, 1)
}

// IncSignup increments signup counter.
func (m *InMemoryRecorder) IncSignup() {
	atomic.AddUint64(&m.signups, 1)
}

// IncAuthFailure counts an authentication failure by reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.inc(m.authFailures, reason)
}

// ObserveGeocode counts a geocoding call by result.
func (m *InMemoryRecorder) ObserveGeocode(result string, _ time.Duration) {
	m.inc(m.geocodes, result)
}

// IncImageCleanup counts an image cleanup outcome.
func (m *InMemoryRecorder) IncImageCleanup(status string) {
	m.inc(m.imageCleanups, status)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
