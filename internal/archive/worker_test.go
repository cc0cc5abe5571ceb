package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/export"
	memorypublisher "github.com/sitewise/inspection-exporter/internal/publisher/memory"
	memorystore "github.com/sitewise/inspection-exporter/internal/storage/memory"
)

type workerFixture struct {
	queue     *Queue
	blobs     *memorystore.BlobStore
	audit     *memorystore.AuditStore
	publisher *memorypublisher.Publisher
	worker    *Worker
}

func newWorkerFixture() *workerFixture {
	f := &workerFixture{
		queue:     NewQueue(4),
		blobs:     memorystore.NewBlobStore(),
		audit:     memorystore.NewAuditStore(),
		publisher: memorypublisher.New(),
	}
	f.worker = NewWorker(f.queue, f.blobs, f.audit, f.publisher, Config{
		BlobPrefix:  "exports",
		ContentType: "application/pdf",
	}, zap.NewNop())
	return f
}

func succeededTask() export.ArchiveTask {
	return export.ArchiveTask{
		Record: export.AuditRecord{
			ID:            "audit-1",
			SubjectID:     "user-1",
			ReportID:      "abc123",
			ReportType:    export.ReportFacade,
			Outcome:       export.OutcomeSucceeded,
			ArtifactBytes: 4,
			ArtifactHash:  "deadbeef",
			CreatedAt:     time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		Artifact: export.Artifact{
			Bytes:    []byte("%PDF"),
			Filename: "facade_report_abc123.pdf",
		},
	}
}

func TestWorkerProcessSuccessFlow(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture()
	f.worker.process(context.Background(), succeededTask())

	data, ok := f.blobs.GetObject("exports/2026/01/02/facade_report_abc123.pdf")
	require.True(t, ok)
	require.Equal(t, []byte("%PDF"), data)

	records := f.audit.Records()
	require.Len(t, records, 1)
	require.Equal(t, "mem://exports/2026/01/02/facade_report_abc123.pdf", records[0].BlobURI)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventTopic, events[0].Topic)
	require.Equal(t, "audit-1", events[0].Event.ID)
	require.Equal(t, export.ReportFacade, events[0].Event.ReportType)
	require.Equal(t, export.OutcomeSucceeded, events[0].Event.Outcome)
	require.Equal(t, "mem://exports/2026/01/02/facade_report_abc123.pdf", events[0].Event.BlobURI)
}

func TestWorkerProcessFailedExportSkipsUpload(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture()
	f.worker.process(context.Background(), export.ArchiveTask{
		Record: export.AuditRecord{
			ID:         "audit-2",
			SubjectID:  "user-1",
			ReportID:   "missing",
			ReportType: export.ReportConcrete,
			Outcome:    export.OutcomeFailed,
			ErrorKind:  "report_not_found",
			CreatedAt:  time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		},
	})

	require.Zero(t, f.blobs.Len(), "failed exports carry no artifact")

	records := f.audit.Records()
	require.Len(t, records, 1)
	require.Equal(t, "report_not_found", records[0].ErrorKind)
	require.Empty(t, records[0].BlobURI)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, export.OutcomeFailed, events[0].Event.Outcome)
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture()
	require.NoError(t, f.queue.Enqueue(context.Background(), succeededTask()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(f.audit.Records()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture()
	dispatch := NewDispatcher(f.queue, []*Worker{f.worker})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.queue.Enqueue(context.Background(), succeededTask()))
	require.Eventually(t, func() bool {
		return len(f.audit.Records()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
