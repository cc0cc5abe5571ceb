// Package probe performs the plain-HTTP preflight ahead of a browser launch.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/sitewise/inspection-exporter/internal/export"
)

// Config controls probe behavior.
type Config struct {
	CookieName string
	UserAgent  string
	Timeout    time.Duration
}

// Prober fetches the report page over plain HTTP with the caller's cookie
// before any engine process is paid for. A report that is missing, or not
// visible to this caller, is rejected here at zero browser cost.
type Prober struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Prober.
func New(cfg Config) (*Prober, error) {
	if cfg.CookieName == "" {
		return nil, fmt.Errorf("cookie name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true // first-party pages only
	// Clones share the visited-URL storage; re-exporting the same report
	// must not be rejected as a revisit.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &Prober{cfg: cfg, baseCollector: c}, nil
}

// Probe GETs the report page and classifies the result.
func (p *Prober) Probe(ctx context.Context, url string, cookie string) error {
	var statusCode int

	collector := p.baseCollector.Clone()
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	collector.SetRequestTimeout(p.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Cookie", fmt.Sprintf("%s=%s", p.cfg.CookieName, cookie))
	})
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	if err := p.visit(ctx, collector, url); err != nil && statusCode == 0 {
		return fmt.Errorf("%w: probe report page: %v", export.ErrUnexpected, err)
	}

	return classify(statusCode)
}

func (p *Prober) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: report page rejected session", export.ErrUnauthenticated)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: report belongs to another account", export.ErrForbidden)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: report page returned 404", export.ErrReportNotFound)
	default:
		return fmt.Errorf("%w: report page returned status %d", export.ErrUnexpected, status)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
