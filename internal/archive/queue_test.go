package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitewise/inspection-exporter/internal/export"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	task := export.ArchiveTask{Record: export.AuditRecord{ID: "audit-1"}}
	require.NoError(t, q.Enqueue(context.Background(), task))
	require.Equal(t, 1, q.Depth())

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "audit-1", got.Record.ID)
	require.Equal(t, 0, q.Depth())
}

func TestQueueFullDropsWithDeadline(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), export.ArchiveTask{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, export.ArchiveTask{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueDequeueCancellation(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close()

	_, err := q.Dequeue(context.Background())
	require.Error(t, err)
}
