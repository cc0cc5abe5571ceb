// Package session owns the lifecycle of one headless browser per export.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/export"
	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

// Config controls browser session behavior.
type Config struct {
	// ExecPath points at a system Chrome/Chromium binary; empty lets
	// chromedp locate one.
	ExecPath   string
	CookieName string
	// CookieHost is the hostname the injected session cookie is scoped to,
	// i.e. the report page server.
	CookieHost     string
	ViewportWidth  int
	ViewportHeight int
}

// Manager launches one isolated browser process per Run call. Sessions are
// never pooled or shared: the cost of a launch per export buys the absence
// of cross-request interference.
type Manager struct {
	cfg    Config
	logger *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if cfg.CookieName == "" {
		return nil, fmt.Errorf("cookie name is required")
	}
	if cfg.CookieHost == "" {
		return nil, fmt.Errorf("cookie host is required")
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 1696
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}, nil
}

// Run acquires a browser session, invokes fn with the page-scoped context,
// and releases the engine process on every exit path. The deferred cancels
// are the single release point; no error branch carries its own close call.
func (m *Manager) Run(ctx context.Context, cookie string, fn func(pageCtx context.Context) error) (err error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, m.allocatorOptions()...)
	defer allocCancel()

	pageCtx, pageCancel := chromedp.NewContext(allocCtx)
	defer pageCancel()

	// A script payload that panics must still release the engine; the
	// deferred cancels above run during unwinding, and the panic is
	// converted so callers always see an error, never a crash.
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("panic inside render session", zap.Any("panic", rec))
			err = fmt.Errorf("%w: panic inside render session: %v", export.ErrUnexpected, rec)
		}
	}()

	if setupErr := chromedp.Run(pageCtx, m.setupActions(cookie)...); setupErr != nil {
		telemetry.ObserveBrowserLaunch(false)
		return fmt.Errorf("%w: %v", export.ErrRenderEngineUnavailable, setupErr)
	}
	telemetry.ObserveBrowserLaunch(true)

	return fn(pageCtx)
}

// Navigate loads the target URL and blocks until the document is ready or
// the timeout elapses. This is the pipeline's sole long suspension point.
func (m *Manager) Navigate(pageCtx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(pageCtx, timeout)
	defer cancel()

	// Waiting on readyState "complete" holds navigation until the load
	// event, which includes stylesheets and embedded photo evidence; a
	// body-ready page can still be missing the images the capture needs.
	var loaded bool
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(`document.readyState === "complete"`, &loaded),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: navigation exceeded %s", export.ErrRenderTimeout, timeout)
		}
		return fmt.Errorf("%w: navigate %s: %v", export.ErrUnexpected, url, err)
	}
	return nil
}

// allocatorOptions returns launch flags for a constrained server host: the
// engine's default sandboxing is unavailable there, so the process runs
// unsandboxed, single-process, and without the shared-memory device.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("single-process", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	return opts
}

// setupActions prepares the fresh browsing context: fixed viewport, network
// domain, and the caller's propagated session cookie scoped to the report
// host so the loaded page authenticates as the original caller.
func (m *Manager) setupActions(cookie string) []chromedp.Action {
	return []chromedp.Action{
		emulation.SetDeviceMetricsOverride(
			int64(m.cfg.ViewportWidth),
			int64(m.cfg.ViewportHeight),
			1.0,
			false,
		),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network domain: %w", err)
			}
			err := network.SetCookie(m.cfg.CookieName, cookie).
				WithDomain(m.cfg.CookieHost).
				WithPath("/").
				WithHTTPOnly(true).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("inject session cookie: %w", err)
			}
			return nil
		}),
	}
}
