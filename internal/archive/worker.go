package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/export"
	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

// EventTopic is the logical topic export events are published to.
const EventTopic = "export.completed"

// Config controls Worker behavior.
type Config struct {
	BlobPrefix  string
	ContentType string
	Topic       string
	TaskTimeout time.Duration
}

// Worker consumes archive tasks and executes the persist pipeline: upload
// the artifact, record the audit row, publish the event. Each step is
// independent; a failed upload still audits the export.
type Worker struct {
	queue     *Queue
	blobStore export.BlobStore
	audit     export.AuditStore
	publisher export.Publisher
	cfg       Config
	logger    *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(
	queue *Queue,
	blobStore export.BlobStore,
	audit export.AuditStore,
	publisher export.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "exports"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/pdf"
	}
	if cfg.Topic == "" {
		cfg.Topic = EventTopic
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		blobStore: blobStore,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run consumes tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// Queue closed during shutdown.
			return
		}
		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task export.ArchiveTask) {
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.TaskTimeout)
	defer cancel()

	rec := task.Record
	failed := false

	if w.blobStore != nil && len(task.Artifact.Bytes) > 0 {
		uri, err := w.blobStore.PutObject(taskCtx, w.blobPath(task), w.cfg.ContentType, task.Artifact.Bytes)
		if err != nil {
			failed = true
			w.logger.Warn("archive upload failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
		} else {
			rec.BlobURI = uri
		}
	}

	if w.audit != nil {
		if err := w.audit.RecordExport(taskCtx, rec); err != nil {
			failed = true
			w.logger.Warn("audit record failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
		}
	}

	if w.publisher != nil {
		event := export.Event{
			ID:         rec.ID,
			SubjectID:  rec.SubjectID,
			ReportID:   rec.ReportID,
			ReportType: rec.ReportType,
			Outcome:    rec.Outcome,
			BlobURI:    rec.BlobURI,
			CreatedAt:  rec.CreatedAt,
		}
		if _, err := w.publisher.Publish(taskCtx, w.cfg.Topic, event); err != nil {
			failed = true
			w.logger.Warn("event publish failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
		}
	}

	if failed {
		telemetry.ObserveArchiveTask("failed")
		return
	}
	telemetry.ObserveArchiveTask("ok")
}

func (w *Worker) blobPath(task export.ArchiveTask) string {
	return fmt.Sprintf("%s/%s/%s",
		w.cfg.BlobPrefix,
		task.Record.CreatedAt.Format("2006/01/02"),
		task.Artifact.Filename,
	)
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   *Queue
	workers []*Worker
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(queue *Queue, workers []*Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}
