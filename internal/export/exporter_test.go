package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProber struct {
	err    error
	calls  int
	lastTo string
}

func (f *fakeProber) Probe(_ context.Context, url string, _ string) error {
	f.calls++
	f.lastTo = url
	return f.err
}

// fakeRunner counts session opens and closes so tests can assert that every
// opened session is released even when the body fails.
type fakeRunner struct {
	opened  int
	closed  int
	openErr error
	fnErr   error
}

func (f *fakeRunner) Run(ctx context.Context, _ string, fn func(context.Context) error) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened++
	defer func() { f.closed++ }()
	if f.fnErr != nil {
		return f.fnErr
	}
	return fn(ctx)
}

type fakeNavigator struct {
	err   error
	calls int
}

func (f *fakeNavigator) Navigate(_ context.Context, _ string, _ time.Duration) error {
	f.calls++
	return f.err
}

type fakeLayout struct {
	err     error
	applied []LayoutProfile
}

func (f *fakeLayout) Apply(_ context.Context, p LayoutProfile) error {
	f.applied = append(f.applied, p)
	return f.err
}

type fakeCapturer struct {
	data []byte
	err  error
}

func (f *fakeCapturer) Capture(_ context.Context, _ LayoutProfile) ([]byte, error) {
	return f.data, f.err
}

type fakeArchive struct {
	tasks []ArchiveTask
	err   error
}

func (f *fakeArchive) Enqueue(_ context.Context, task ArchiveTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeHasher struct{ hash string }

func (f *fakeHasher) Hash([]byte) (string, error) { return f.hash, nil }

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeIDGen struct{ id string }

func (f *fakeIDGen) NewID() (string, error) { return f.id, nil }

type pipeline struct {
	prober   *fakeProber
	runner   *fakeRunner
	nav      *fakeNavigator
	layout   *fakeLayout
	capturer *fakeCapturer
	archive  *fakeArchive
	exporter *Exporter
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	loc, err := NewLocator("http://reports.internal:3000")
	require.NoError(t, err)
	p := &pipeline{
		prober:   &fakeProber{},
		runner:   &fakeRunner{},
		nav:      &fakeNavigator{},
		layout:   &fakeLayout{},
		capturer: &fakeCapturer{data: []byte("%PDF-1.7 test")},
		archive:  &fakeArchive{},
	}
	p.exporter = New(
		loc,
		p.prober,
		p.runner,
		p.nav,
		p.layout,
		p.capturer,
		p.archive,
		&fakeHasher{hash: "deadbeef"},
		&fakeClock{now: time.Unix(1700000000, 0)},
		&fakeIDGen{id: "audit-1"},
		Config{NavigationTimeout: time.Second, ArchiveTimeout: time.Second},
		zap.NewNop(),
	)
	return p
}

func request(rt ReportType) Request {
	return Request{
		ReportID:   "abc123",
		ReportType: rt,
		Caller:     Identity{SubjectID: "user-1", Role: "inspector"},
		Cookie:     "session-token",
	}
}

func TestExportSuccess(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	artifact, err := p.exporter.Export(context.Background(), request(ReportAirBalancing))
	require.NoError(t, err)
	require.Equal(t, "air_balancing_report_abc123.pdf", artifact.Filename)
	require.Equal(t, []byte("%PDF-1.7 test"), artifact.Bytes)

	require.Equal(t, 1, p.prober.calls)
	require.Equal(t, "http://reports.internal:3000/reports/air-balancing/abc123", p.prober.lastTo)
	require.Equal(t, 1, p.runner.opened)
	require.Equal(t, 1, p.runner.closed)
	require.Len(t, p.layout.applied, 1)
	require.Equal(t, ReportAirBalancing, p.layout.applied[0].Type)

	require.Len(t, p.archive.tasks, 1)
	rec := p.archive.tasks[0].Record
	require.Equal(t, OutcomeSucceeded, rec.Outcome)
	require.Equal(t, "user-1", rec.SubjectID)
	require.Equal(t, "deadbeef", rec.ArtifactHash)
	require.Equal(t, len(artifact.Bytes), rec.ArtifactBytes)
}

func TestExportInvalidTypeSkipsEverything(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	_, err := p.exporter.Export(context.Background(), request(ReportType("BOGUS")))
	require.ErrorIs(t, err, ErrInvalidReportType)
	require.Zero(t, p.prober.calls)
	require.Zero(t, p.runner.opened)
}

func TestExportProbeFailureSkipsSession(t *testing.T) {
	t.Parallel()

	for _, cause := range []error{ErrReportNotFound, ErrForbidden, ErrUnauthenticated} {
		p := newPipeline(t)
		p.prober.err = cause
		_, err := p.exporter.Export(context.Background(), request(ReportConcrete))
		require.ErrorIs(t, err, cause)
		require.Zero(t, p.runner.opened, "no browser launch for %v", cause)

		require.Len(t, p.archive.tasks, 1)
		require.Equal(t, OutcomeFailed, p.archive.tasks[0].Record.Outcome)
		require.Equal(t, Kind(cause), p.archive.tasks[0].Record.ErrorKind)
	}
}

func TestExportSessionClosedOnCaptureFailure(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	p.capturer.err = ErrEmptyArtifact
	_, err := p.exporter.Export(context.Background(), request(ReportFacade))
	require.ErrorIs(t, err, ErrEmptyArtifact)
	require.Equal(t, 1, p.runner.opened)
	require.Equal(t, 1, p.runner.closed)
}

func TestExportSessionClosedOnNavigationTimeout(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	p.nav.err = ErrRenderTimeout
	_, err := p.exporter.Export(context.Background(), request(ReportGarage))
	require.ErrorIs(t, err, ErrRenderTimeout)
	require.Equal(t, 1, p.runner.opened)
	require.Equal(t, 1, p.runner.closed)
	require.Len(t, p.layout.applied, 0)
}

func TestExportLaunchFailure(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	p.runner.openErr = ErrRenderEngineUnavailable
	_, err := p.exporter.Export(context.Background(), request(ReportParapet))
	require.ErrorIs(t, err, ErrRenderEngineUnavailable)
}

func TestExportArchiveFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	p.archive.err = errors.New("queue full")
	artifact, err := p.exporter.Export(context.Background(), request(ReportStructural))
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Bytes)
}

func TestKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Kind(nil))
	require.Equal(t, "report_not_found", Kind(ErrReportNotFound))
	require.Equal(t, "render_timeout", Kind(errors.Join(errors.New("wrapped"), ErrRenderTimeout)))
	require.Equal(t, "unexpected", Kind(errors.New("mystery")))
}
