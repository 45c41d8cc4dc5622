package geocode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/model"
)

// BreakerSettings configures the circuit around an upstream geocoder.
type BreakerSettings struct {
	// MinRequests is the number of calls observed before the circuit may open.
	MinRequests uint32
	// FailureRatio opens the circuit once reached.
	FailureRatio float64
	// Interval resets counts while closed.
	Interval time.Duration
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
}

// DefaultBreakerSettings opens after 60% failures over at least 5 calls.
var DefaultBreakerSettings = BreakerSettings{
	MinRequests:  5,
	FailureRatio: 0.6,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
}

// Breaker wraps a Geocoder with a circuit breaker.
// Only upstream failures count against the circuit; an address that
// resolves to nothing is a successful call.
type Breaker struct {
	next    Geocoder
	cb      *gobreaker.CircuitBreaker[model.Location]
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewBreaker wraps next.
func NewBreaker(next Geocoder, settings BreakerSettings, m metrics.Recorder, logger *slog.Logger) *Breaker {
	if m == nil {
		m = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Breaker{next: next, metrics: m, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[model.Location](gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			gerr, ok := AsError(err)
			return ok && gerr.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return b
}

// Geocode calls the wrapped geocoder unless the circuit is open.
func (b *Breaker) Geocode(ctx context.Context, address string) (model.Location, error) {
	start := time.Now()
	loc, err := b.cb.Execute(func() (model.Location, error) {
		return b.next.Geocode(ctx, address)
	})
	b.metrics.ObserveGeocode(resultLabel(err), time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.Location{}, &Error{Status: http.StatusServiceUnavailable, Message: MsgUnavailable, Err: err}
	}
	return loc, err
}

// State reports the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	}
	if gerr, ok := AsError(err); ok && gerr.Status == http.StatusUnprocessableEntity {
		return "not_found"
	}
	return "error"
}
