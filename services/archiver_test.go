package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightflow/api/logger"
	"insightflow/api/models"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]models.ArchivedEvent
	err     error
}

func (w *fakeWriter) InsertEvents(_ context.Context, events []models.ArchivedEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	batch := make([]models.ArchivedEvent, len(events))
	copy(batch, events)
	w.batches = append(w.batches, batch)
	return nil
}

func (w *fakeWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func archived(i int) models.ArchivedEvent {
	return models.ArchivedEvent{EventID: fmt.Sprintf("e-%d", i), EventType: "page_view", Timestamp: t0}
}

func TestEventArchiver_FlushesBySizeAndOnClose(t *testing.T) {
	w := &fakeWriter{}
	a := NewEventArchiver(w, 2, time.Hour, nil, logger.Nop())
	a.Start()

	for i := 0; i < 5; i++ {
		a.Enqueue(archived(i))
	}
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, 5, w.total())
	assert.Len(t, w.batches[0], 2)
}

func TestEventArchiver_FlushesOnTimer(t *testing.T) {
	w := &fakeWriter{}
	a := NewEventArchiver(w, 100, 10*time.Millisecond, nil, logger.Nop())
	a.Start()
	defer a.Close(context.Background())

	a.Enqueue(archived(1))
	assert.Eventually(t, func() bool { return w.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEventArchiver_DropsWhenFull(t *testing.T) {
	w := &fakeWriter{}
	// batch size 1 gives a queue of 4; nothing drains until Start.
	a := NewEventArchiver(w, 1, time.Hour, nil, logger.Nop())
	for i := 0; i < 6; i++ {
		a.Enqueue(archived(i))
	}
	a.Start()
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, 4, w.total())
}

func TestEventArchiver_EnqueueAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	a := NewEventArchiver(w, 10, time.Hour, nil, logger.Nop())
	a.Start()
	require.NoError(t, a.Close(context.Background()))

	assert.NotPanics(t, func() { a.Enqueue(archived(1)) })
	assert.Zero(t, w.total())
}

func TestEventArchiver_WriterErrorDoesNotStopWorker(t *testing.T) {
	w := &fakeWriter{err: errors.New("clickhouse down")}
	a := NewEventArchiver(w, 1, time.Hour, nil, logger.Nop())
	a.Start()
	a.Enqueue(archived(1))
	a.Enqueue(archived(2))
	require.NoError(t, a.Close(context.Background()))
	assert.Zero(t, w.total())
}
