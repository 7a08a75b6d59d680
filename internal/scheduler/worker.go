package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"apartment-locator/internal/edits"
)

// ErrQueueFull is returned when the refresh queue cannot take another batch
var ErrQueueFull = errors.New("refresh queue is full")

// ErrQueueStopped is returned after Stop
var ErrQueueStopped = errors.New("refresh queue is stopped")

// RefreshObserver runs conflict detection for one scraper pass
type RefreshObserver interface {
	ObserveRefresh(ctx context.Context, observations []edits.Observation) *edits.RefreshSummary
}

// RefreshBatch is one queued scraper pass
type RefreshBatch struct {
	ID           string
	Observations []edits.Observation
	EnqueuedAt   time.Time
}

// QueueStats reports worker progress
type QueueStats struct {
	Pending   int    `json:"pending"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed_observations"`
	LastBatch string `json:"last_batch,omitempty"`
}

// RefreshWorker drains queued scraper passes one batch at a time, so a burst
// of refreshes does not run detection concurrently on the same keys.
type RefreshWorker struct {
	observer RefreshObserver
	logger   *zap.Logger
	queue    chan RefreshBatch
	stopChan chan struct{}
	done     chan struct{}

	mu        sync.Mutex
	isRunning bool
	stopped   bool
	stats     QueueStats
}

// NewRefreshWorker creates a worker with room for capacity pending batches
func NewRefreshWorker(observer RefreshObserver, capacity int, logger *zap.Logger) *RefreshWorker {
	if capacity <= 0 {
		capacity = 64
	}
	return &RefreshWorker{
		observer: observer,
		logger:   logger,
		queue:    make(chan RefreshBatch, capacity),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start starts the worker loop
func (w *RefreshWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning || w.stopped {
		return
	}
	w.isRunning = true
	w.logger.Info("refresh worker started", zap.Int("capacity", cap(w.queue)))
	go w.run()
}

// Stop stops accepting batches, finishes the ones already queued and waits
func (w *RefreshWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.isRunning
	close(w.stopChan)
	w.mu.Unlock()

	if running {
		<-w.done
	}
	w.logger.Info("refresh worker stopped")
}

// Enqueue schedules a scraper pass and returns its batch id
func (w *RefreshWorker) Enqueue(observations []edits.Observation) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return "", ErrQueueStopped
	}
	batch := RefreshBatch{
		ID:           uuid.NewString(),
		Observations: observations,
		EnqueuedAt:   time.Now(),
	}
	select {
	case w.queue <- batch:
		w.stats.Pending++
		return batch.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Stats returns a snapshot of worker progress
func (w *RefreshWorker) Stats() QueueStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *RefreshWorker) run() {
	defer close(w.done)
	for {
		select {
		case batch := <-w.queue:
			w.process(batch)
		case <-w.stopChan:
			for {
				select {
				case batch := <-w.queue:
					w.process(batch)
				default:
					return
				}
			}
		}
	}
}

func (w *RefreshWorker) process(batch RefreshBatch) {
	summary := w.observer.ObserveRefresh(context.Background(), batch.Observations)

	w.mu.Lock()
	w.stats.Pending--
	w.stats.Processed++
	w.stats.Failed += summary.Failed
	w.stats.LastBatch = batch.ID
	w.mu.Unlock()

	w.logger.Info("refresh batch processed",
		zap.String("batch_id", batch.ID),
		zap.Int("observations", len(batch.Observations)),
		zap.Int("failed", summary.Failed),
		zap.Duration("queued_for", time.Since(batch.EnqueuedAt)))
}
