// Package cleanup removes orphaned upload files in the background.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/placeshare/placeshare/internal/metrics"
)

// DefaultQueueSize is the number of pending removals held before new ones are dropped.
const DefaultQueueSize = 256

// Remover deletes a stored file.
type Remover interface {
	Remove(path string) error
}

// Janitor deletes files on a single worker goroutine.
// Enqueue never blocks; a full queue drops the job.
type Janitor struct {
	remover Remover
	logger  *slog.Logger
	metrics metrics.Recorder
	queue   chan string

	started  bool
	draining bool
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
}

// NewJanitor creates a janitor with the given queue size.
func NewJanitor(remover Remover, logger *slog.Logger, recorder metrics.Recorder, queueSize int) *Janitor {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Janitor{
		remover: remover,
		logger:  logger.With("component", "cleanup.janitor"),
		metrics: recorder,
		queue:   make(chan string, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Enqueue schedules path for removal. It reports whether the job was accepted.
func (j *Janitor) Enqueue(path string) bool {
	if path == "" {
		return false
	}

	j.mu.Lock()
	draining := j.draining
	j.mu.Unlock()
	if draining {
		j.drop(path, "janitor draining")
		return false
	}

	select {
	case j.queue <- path:
		return true
	default:
		j.drop(path, "queue full")
		return false
	}
}

func (j *Janitor) drop(path, reason string) {
	j.logger.Warn("image cleanup dropped", "path", path, "reason", reason)
	j.metrics.IncImageCleanup("dropped")
}

// Run processes removals until ctx is cancelled or Shutdown is called.
func (j *Janitor) Run(ctx context.Context) error {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return errors.New("janitor already started")
	}
	j.started = true
	j.mu.Unlock()

	defer close(j.done)

	j.logger.Info("cleanup janitor started")

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup janitor stopping")
			return ctx.Err()
		case <-j.stop:
			j.drain()
			j.logger.Info("cleanup janitor drained, stopping")
			return nil
		case path := <-j.queue:
			j.remove(path)
		}
	}
}

func (j *Janitor) drain() {
	for {
		select {
		case path := <-j.queue:
			j.remove(path)
		default:
			return
		}
	}
}

func (j *Janitor) remove(path string) {
	if err := j.remover.Remove(path); err != nil {
		j.logger.Warn("image cleanup failed", "path", path, "error", err)
		j.metrics.IncImageCleanup("failed")
		return
	}
	j.logger.Debug("image removed", "path", path)
	j.metrics.IncImageCleanup("removed")
}

// Shutdown stops accepting jobs, finishes the queued ones and waits for Run to return.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.mu.Lock()
	started := j.started
	if !j.draining {
		j.draining = true
		close(j.stop)
	}
	j.mu.Unlock()

	if !started {
		j.drain()
		return nil
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
