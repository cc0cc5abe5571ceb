package export

import (
	"fmt"
	"net/url"
	"strings"
)

// Default print geometry. AIR_BALANCING deviates: its airflow tables clip at
// standard margins, so it prints with wider margins and slightly shrunken
// content.
const (
	defaultMarginInches     = 0.4
	wideTableMarginInches   = 0.55
	defaultContentScale     = 1.0
	wideTableContentScale   = 0.9
	primaryContentWrapper   = ".report-content"
	secondaryContentWrapper = "main"
)

// profiles is the single source of truth for per-type capture behavior.
// Adding a report type is one new row here; nothing else switches on type.
var profiles = map[ReportType]LayoutProfile{
	ReportConcrete:     standardProfile(ReportConcrete, "/reports/concrete/"),
	ReportFacade:       photoProfile(ReportFacade, "/reports/facade/"),
	ReportGarage:       standardProfile(ReportGarage, "/reports/garage/"),
	ReportInsulation:   standardProfile(ReportInsulation, "/reports/insulation/"),
	ReportFirestopping: standardProfile(ReportFirestopping, "/reports/firestopping/"),
	ReportStructural:   standardProfile(ReportStructural, "/reports/structural/"),
	ReportAirBalancing: wideProfile(ReportAirBalancing, "/reports/air-balancing/"),
	ReportDailyField:   wideProfile(ReportDailyField, "/reports/daily-field/"),
	ReportParapet:      standardProfile(ReportParapet, "/reports/parapet/"),
}

func standardProfile(t ReportType, path string) LayoutProfile {
	return LayoutProfile{
		Type:             t,
		Path:             path,
		Orientation:      OrientationPortrait,
		Margins:          uniformMargins(defaultMarginInches),
		Scale:            defaultContentScale,
		PrimarySelector:  primaryContentWrapper,
		FallbackSelector: secondaryContentWrapper,
	}
}

func photoProfile(t ReportType, path string) LayoutProfile {
	p := standardProfile(t, path)
	p.PhotoGallery = true
	return p
}

// wideProfile covers the two templates whose tabular content is wider than
// tall. Orientation is a static property of the template, never inferred
// from content.
func wideProfile(t ReportType, path string) LayoutProfile {
	p := standardProfile(t, path)
	p.Orientation = OrientationLandscape
	if t == ReportAirBalancing {
		p.Margins = uniformMargins(wideTableMarginInches)
		p.Scale = wideTableContentScale
	}
	return p
}

func uniformMargins(inches float64) Margins {
	return Margins{Top: inches, Bottom: inches, Left: inches, Right: inches}
}

// Profile returns the layout profile for a report type.
func Profile(t ReportType) (LayoutProfile, error) {
	p, ok := profiles[t]
	if !ok {
		return LayoutProfile{}, fmt.Errorf("%w: %q", ErrInvalidReportType, t)
	}
	return p, nil
}

// ParseReportType validates a wire tag.
func ParseReportType(raw string) (ReportType, error) {
	t := ReportType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := profiles[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidReportType, raw)
	}
	return t, nil
}

// Locator maps (report type, report id) pairs to report page URLs on the
// serving host.
type Locator struct {
	baseURL string
}

// NewLocator builds a Locator for the report page server.
func NewLocator(baseURL string) (*Locator, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("report server base URL is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("parse report server base URL: %w", err)
	}
	return &Locator{baseURL: trimmed}, nil
}

// Resolve returns the full URL of the human-readable report page.
func (l *Locator) Resolve(t ReportType, reportID string) (string, error) {
	p, err := Profile(t)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reportID) == "" {
		return "", fmt.Errorf("%w: report id is required", ErrReportNotFound)
	}
	return l.baseURL + p.Path + url.PathEscape(reportID), nil
}

// Host returns the hostname cookies are scoped to.
func (l *Locator) Host() (string, error) {
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	return u.Hostname(), nil
}
