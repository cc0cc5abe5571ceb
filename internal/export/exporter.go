package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

// Config controls Exporter behavior.
type Config struct {
	NavigationTimeout time.Duration
	ArchiveTimeout    time.Duration
}

// Exporter orchestrates one export call: resolve, probe, render, capture.
// The state machine is linear; any failed transition is terminal for the
// request and the session teardown still runs if a session was opened.
type Exporter struct {
	locator   *Locator
	prober    Prober
	sessions  SessionRunner
	navigator Navigator
	layout    LayoutApplier
	capturer  Capturer
	archive   ArchiveQueue
	hasher    Hasher
	clock     Clock
	idGen     IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Exporter.
func New(
	locator *Locator,
	prober Prober,
	sessions SessionRunner,
	navigator Navigator,
	layout LayoutApplier,
	capturer Capturer,
	archive ArchiveQueue,
	hasher Hasher,
	clock Clock,
	idGen IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Exporter {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		locator:   locator,
		prober:    prober,
		sessions:  sessions,
		navigator: navigator,
		layout:    layout,
		capturer:  capturer,
		archive:   archive,
		hasher:    hasher,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
	}
}

// Export runs the full pipeline and returns the PDF artifact or a kinded
// error.
func (e *Exporter) Export(ctx context.Context, req Request) (Artifact, error) {
	start := e.clock.Now()

	profile, err := Profile(req.ReportType)
	if err != nil {
		return Artifact{}, e.finish(ctx, req, start, Artifact{}, err)
	}

	targetURL, err := e.locator.Resolve(req.ReportType, req.ReportID)
	if err != nil {
		return Artifact{}, e.finish(ctx, req, start, Artifact{}, err)
	}

	if err := e.prober.Probe(ctx, targetURL, req.Cookie); err != nil {
		return Artifact{}, e.finish(ctx, req, start, Artifact{}, err)
	}

	var pdf []byte
	err = e.sessions.Run(ctx, req.Cookie, func(pageCtx context.Context) error {
		if err := e.navigator.Navigate(pageCtx, targetURL, e.cfg.NavigationTimeout); err != nil {
			return err
		}
		if err := e.layout.Apply(pageCtx, profile); err != nil {
			return err
		}
		data, err := e.capturer.Capture(pageCtx, profile)
		if err != nil {
			return err
		}
		pdf = data
		return nil
	})
	if err != nil {
		return Artifact{}, e.finish(ctx, req, start, Artifact{}, err)
	}

	artifact := Artifact{
		Bytes:    pdf,
		Filename: Filename(req.ReportType, req.ReportID),
	}
	return artifact, e.finish(ctx, req, start, artifact, nil)
}

// finish records the terminal result: metrics, operator logging, and the
// archive handoff. It returns the classified error for the caller.
func (e *Exporter) finish(ctx context.Context, req Request, start time.Time, artifact Artifact, cause error) error {
	elapsed := e.clock.Now().Sub(start)
	kind := Kind(cause)
	telemetry.ObserveExport(string(req.ReportType), outcomeLabel(cause), elapsed)

	if cause != nil && serverFault(cause) {
		e.logger.Error("export failed",
			zap.String("report_id", req.ReportID),
			zap.String("report_type", string(req.ReportType)),
			zap.String("subject", req.Caller.SubjectID),
			zap.String("kind", kind),
			zap.Duration("elapsed", elapsed),
			zap.Error(cause),
		)
	}

	e.enqueueArchive(ctx, req, start, elapsed, artifact, cause)

	if cause == nil {
		return nil
	}
	return cause
}

func (e *Exporter) enqueueArchive(ctx context.Context, req Request, start time.Time, elapsed time.Duration, artifact Artifact, cause error) {
	if e.archive == nil {
		return
	}
	rec, err := e.buildRecord(req, start, elapsed, artifact, cause)
	if err != nil {
		e.logger.Warn("build audit record failed", zap.Error(err))
		return
	}
	queueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ArchiveTimeout)
	defer cancel()
	if err := e.archive.Enqueue(queueCtx, ArchiveTask{Record: rec, Artifact: artifact}); err != nil {
		// Archiving is best effort; losing a task never fails the request.
		e.logger.Warn("archive enqueue failed",
			zap.String("report_id", req.ReportID),
			zap.Error(err),
		)
	}
}

func (e *Exporter) buildRecord(req Request, start time.Time, elapsed time.Duration, artifact Artifact, cause error) (AuditRecord, error) {
	id, err := e.idGen.NewID()
	if err != nil {
		return AuditRecord{}, fmt.Errorf("generate audit id: %w", err)
	}
	rec := AuditRecord{
		ID:         id,
		SubjectID:  req.Caller.SubjectID,
		ReportID:   req.ReportID,
		ReportType: req.ReportType,
		Outcome:    OutcomeSucceeded,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  start,
	}
	if cause != nil {
		rec.Outcome = OutcomeFailed
		rec.ErrorKind = Kind(cause)
		return rec, nil
	}
	rec.ArtifactBytes = len(artifact.Bytes)
	if e.hasher != nil {
		digest, err := e.hasher.Hash(artifact.Bytes)
		if err != nil {
			return AuditRecord{}, fmt.Errorf("hash artifact: %w", err)
		}
		rec.ArtifactHash = digest
	}
	return rec, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "succeeded"
	}
	return Kind(err)
}

// serverFault reports whether the failure is an operator incident rather
// than a client error.
func serverFault(err error) bool {
	for _, client := range []error{
		ErrUnauthenticated,
		ErrInvalidReportType,
		ErrForbidden,
		ErrReportNotFound,
		ErrRateLimited,
	} {
		if errors.Is(err, client) {
			return false
		}
	}
	return true
}
