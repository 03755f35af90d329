package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"site-analytics/internal/domain"
	"site-analytics/internal/repository"
	"site-analytics/pkg/logger"
	"site-analytics/pkg/metrics"
)

// Buffer defaults
const (
	DefaultFlushInterval  = 5 * time.Second
	DefaultFlushThreshold = 50

	flushTimeout = 10 * time.Second
)

// EventBufferConfig tunes when the buffer flushes
type EventBufferConfig struct {
	FlushInterval  time.Duration
	FlushThreshold int
}

// EventBuffer micro-batches interaction events in memory and writes them in
// one transaction when FlushThreshold events are pending or FlushInterval has
// passed since the first unflushed event.
//
// At most one timer is armed at a time. flushMu serializes flushes so a timer
// flush and a threshold flush never drain the queue concurrently. A failed
// flush puts the batch back in front of the queue and re-arms the timer.
type EventBuffer struct {
	repo      repository.EventRepository
	interval  time.Duration
	threshold int
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	pending  []domain.EventRecord
	timer    *time.Timer
	timerSeq uint64
	stopped  bool

	flushMu sync.Mutex
}

// NewEventBuffer creates a new event buffer
func NewEventBuffer(repo repository.EventRepository, cfg EventBufferConfig, logger *logger.Logger, m *metrics.Metrics) *EventBuffer {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}

	return &EventBuffer{
		repo:      repo,
		interval:  cfg.FlushInterval,
		threshold: cfg.FlushThreshold,
		logger:    logger.Named("event_buffer"),
		metrics:   m,
	}
}

// Enqueue appends an event. Reaching the threshold flushes synchronously;
// otherwise a flush timer is armed if none is pending. Flush errors are
// logged, not returned.
func (b *EventBuffer) Enqueue(event domain.EventRecord) {
	b.mu.Lock()
	b.pending = append(b.pending, event)
	size := len(b.pending)
	flushNow := size >= b.threshold || b.stopped
	if flushNow {
		b.disarmLocked()
	} else {
		b.armLocked()
	}
	b.mu.Unlock()

	b.metrics.EventsQueuedTotal.WithLabelValues(string(event.Type)).Inc()
	b.metrics.EventBufferPending.Set(float64(size))

	if flushNow {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		_ = b.flush(ctx, "threshold")
	}
}

// Flush writes every pending event now
func (b *EventBuffer) Flush(ctx context.Context) error {
	return b.flush(ctx, "manual")
}

// Stop disarms the timer and performs a final forced flush. Events enqueued
// afterwards are flushed immediately.
func (b *EventBuffer) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.disarmLocked()
	b.mu.Unlock()

	return b.flush(ctx, "shutdown")
}

// Pending returns the number of buffered events
func (b *EventBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *EventBuffer) armLocked() {
	if b.timer != nil || b.stopped {
		return
	}
	b.timerSeq++
	seq := b.timerSeq
	b.timer = time.AfterFunc(b.interval, func() { b.onTimer(seq) })
}

func (b *EventBuffer) disarmLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// onTimer clears the armed flag before flushing so events enqueued during
// the flush can arm a new timer. A timer that was superseded does nothing.
func (b *EventBuffer) onTimer(seq uint64) {
	b.mu.Lock()
	if b.timer == nil || seq != b.timerSeq {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	_ = b.flush(ctx, "timer")
}

func (b *EventBuffer) flush(ctx context.Context, trigger string) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := b.repo.InsertBatch(ctx, batch)
	b.metrics.EventFlushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		b.mu.Lock()
		b.pending = append(batch, b.pending...)
		size := len(b.pending)
		b.armLocked()
		b.mu.Unlock()

		b.metrics.EventFlushesTotal.WithLabelValues(trigger, "error").Inc()
		b.metrics.EventBufferPending.Set(float64(size))
		b.logger.WithError(err).WithFields(map[string]interface{}{
			"trigger": trigger,
			"batch":   len(batch),
			"pending": size,
		}).Error("Failed to flush analytics events, keeping them for retry")
		return fmt.Errorf("failed to flush %d events: %w", len(batch), err)
	}

	size := b.Pending()
	b.metrics.EventFlushesTotal.WithLabelValues(trigger, "success").Inc()
	b.metrics.EventsFlushedTotal.Add(float64(len(batch)))
	b.metrics.EventBufferPending.Set(float64(size))
	b.logger.WithFields(map[string]interface{}{
		"trigger":  trigger,
		"batch":    len(batch),
		"duration": time.Since(start),
	}).Debug("Analytics events flushed")

	return nil
}
