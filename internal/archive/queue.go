// Package archive persists finished exports off the request path.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sitewise/inspection-exporter/internal/export"
	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan export.ArchiveTask
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{
		ch: make(chan export.ArchiveTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends. The
// request path calls this with a short deadline so a full backlog drops the
// task instead of stalling the response.
func (q *Queue) Enqueue(ctx context.Context, task export.ArchiveTask) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("archive enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		telemetry.SetArchiveQueueDepth(len(q.ch))
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (export.ArchiveTask, error) {
	select {
	case <-ctx.Done():
		return export.ArchiveTask{}, fmt.Errorf("archive dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return export.ArchiveTask{}, errors.New("archive queue closed")
		}
		telemetry.SetArchiveQueueDepth(len(q.ch))
		return task, nil
	}
}

// Depth reports the current backlog.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
