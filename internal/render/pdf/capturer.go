// Package pdf drives the rendering engine's print pipeline.
package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/sitewise/inspection-exporter/internal/export"
)

// Letter paper in inches; Chrome's print surface works in inches.
const (
	paperWidthInches  = 8.5
	paperHeightInches = 11.0
)

// footerTemplate stamps page number, total pages, and the generation date
// on every page. The class names are the engine's print-template contract.
const footerTemplate = `<div style="font-size:8px; width:100%; text-align:center; color:#444;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span>` +
	`&nbsp;&nbsp;|&nbsp;&nbsp;Generated <span class="date"></span>` +
	`</div>`

// footer needs room below the content or the engine clips it.
const minFooterMarginInches = 0.45

// Capturer produces the final PDF bytes from a laid-out page.
type Capturer struct{}

// NewCapturer constructs a Capturer.
func NewCapturer() *Capturer {
	return &Capturer{}
}

// Capture prints the current page with the profile's geometry. A zero-length
// buffer means the engine silently failed to paint and is an error, never a
// valid empty document.
func (c *Capturer) Capture(pageCtx context.Context, profile export.LayoutProfile) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidthInches).
			WithPaperHeight(paperHeightInches).
			WithLandscape(profile.Landscape()).
			WithScale(scaleFor(profile)).
			WithMarginTop(profile.Margins.Top).
			WithMarginBottom(bottomMargin(profile)).
			WithMarginLeft(profile.Margins.Left).
			WithMarginRight(profile.Margins.Right).
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate(`<span></span>`).
			WithFooterTemplate(footerTemplate).
			Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: capture: %v", export.ErrRenderTimeout, err)
		}
		return nil, fmt.Errorf("%w: print to pdf: %v", export.ErrUnexpected, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: engine returned a zero-length buffer", export.ErrEmptyArtifact)
	}
	return buf, nil
}

func scaleFor(profile export.LayoutProfile) float64 {
	if profile.Scale <= 0 {
		return 1.0
	}
	return profile.Scale
}

func bottomMargin(profile export.LayoutProfile) float64 {
	if profile.Margins.Bottom < minFooterMarginInches {
		return minFooterMarginInches
	}
	return profile.Margins.Bottom
}
