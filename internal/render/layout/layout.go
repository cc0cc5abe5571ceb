// Package layout mutates the loaded report page into its print form.
package layout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/export"
	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

// Config controls the readiness wait.
type Config struct {
	SelectorTimeout time.Duration
}

// Adapter applies a report type's layout profile to the live page: wait for
// content, hide interactive chrome, constrain photo galleries, inject the
// print stylesheet. It never runs concurrently with capture on the same
// page; the exporter sequences the two.
type Adapter struct {
	cfg    Config
	logger *zap.Logger
}

// NewAdapter constructs an Adapter.
func NewAdapter(cfg Config, logger *zap.Logger) *Adapter {
	if cfg.SelectorTimeout <= 0 {
		cfg.SelectorTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// Apply runs the readiness wait and then every script the profile selects.
func (a *Adapter) Apply(pageCtx context.Context, profile export.LayoutProfile) error {
	if err := a.waitForContent(pageCtx, profile); err != nil {
		return err
	}

	for _, script := range ScriptsFor(profile) {
		var ok bool
		if err := chromedp.Run(pageCtx, chromedp.Evaluate(script, &ok)); err != nil {
			return fmt.Errorf("%w: layout script (payload %s): %v", export.ErrUnexpected, ScriptVersion, err)
		}
	}
	return nil
}

// waitForContent tries the profile's primary content selector and falls
// back once to the secondary one. Report templates do not share a wrapper
// class, so a missing primary selector alone must not fail the export.
func (a *Adapter) waitForContent(pageCtx context.Context, profile export.LayoutProfile) error {
	err := a.waitSelector(pageCtx, profile.PrimarySelector)
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: wait for %q: %v", export.ErrUnexpected, profile.PrimarySelector, err)
	}

	telemetry.ObserveSelectorFallback()
	a.logger.Debug("primary content selector missing, trying fallback",
		zap.String("report_type", string(profile.Type)),
		zap.String("primary", profile.PrimarySelector),
		zap.String("fallback", profile.FallbackSelector),
	)

	err = a.waitSelector(pageCtx, profile.FallbackSelector)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: content selectors %q and %q never appeared",
			export.ErrRenderTimeout, profile.PrimarySelector, profile.FallbackSelector)
	}
	return fmt.Errorf("%w: wait for %q: %v", export.ErrUnexpected, profile.FallbackSelector, err)
}

func (a *Adapter) waitSelector(pageCtx context.Context, selector string) error {
	waitCtx, cancel := context.WithTimeout(pageCtx, a.cfg.SelectorTimeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// ScriptsFor returns the ordered script payloads for a profile. Exposed so
// the payload selection is testable without a browser.
func ScriptsFor(profile export.LayoutProfile) []string {
	scripts := []string{hideChromeScript}
	if profile.PhotoGallery {
		scripts = append(scripts, galleryScript)
	}
	scripts = append(scripts, printStyleScript(string(profile.Orientation)))
	return scripts
}
