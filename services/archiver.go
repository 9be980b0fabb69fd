package services

import (
	"context"
	"sync"
	"time"

	"insightflow/api/logger"
	"insightflow/api/models"
	"insightflow/api/observability"
)

type ArchiveWriter interface {
	InsertEvents(ctx context.Context, events []models.ArchivedEvent) error
}

// EventArchiver batches tracking records into the archive in the
// background. Enqueue never blocks; when the queue is full the record is
// dropped and counted.
type EventArchiver struct {
	writer     ArchiveWriter
	queue      chan models.ArchivedEvent
	batchSize  int
	flushEvery time.Duration
	metrics    *observability.Metrics
	log        *logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewEventArchiver(w ArchiveWriter, batchSize int, flushEvery time.Duration, metrics *observability.Metrics, log *logger.Logger) *EventArchiver {
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushEvery <= 0 {
		flushEvery = 5 * time.Second
	}
	return &EventArchiver{
		writer:     w,
		queue:      make(chan models.ArchivedEvent, batchSize*4),
		batchSize:  batchSize,
		flushEvery: flushEvery,
		metrics:    metrics,
		log:        log.With("service", "EventArchiver"),
		done:       make(chan struct{}),
	}
}

func (a *EventArchiver) Start() {
	go a.run()
}

func (a *EventArchiver) Enqueue(event models.ArchivedEvent) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.metrics.ArchiveDropped(1)
		return
	}
	select {
	case a.queue <- event:
	default:
		a.metrics.ArchiveDropped(1)
		a.log.Warn("Archive queue full, dropping event", "event_id", event.EventID)
	}
}

// Close stops intake and waits for the worker to flush what is queued.
func (a *EventArchiver) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *EventArchiver) run() {
	defer close(a.done)

	ticker := time.NewTicker(a.flushEvery)
	defer ticker.Stop()

	batch := make([]models.ArchivedEvent, 0, a.batchSize)
	for {
		select {
		case event, ok := <-a.queue:
			if !ok {
				a.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= a.batchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (a *EventArchiver) flush(batch []models.ArchivedEvent) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.writer.InsertEvents(ctx, batch); err != nil {
		a.metrics.ArchiveDropped(len(batch))
		a.log.Error("Failed to archive events", "count", len(batch), "error", err)
		return
	}
	a.metrics.ArchiveFlushed(len(batch))
}
