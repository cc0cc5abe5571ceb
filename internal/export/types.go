// Package export defines core types shared across the export pipeline.
package export

import (
	"fmt"
	"strings"
	"time"
)

// ReportType identifies one of the fixed inspection report categories.
type ReportType string

// Report type tags accepted on the wire.
const (
	ReportConcrete     ReportType = "CONCRETE"
	ReportFacade       ReportType = "FACADE"
	ReportGarage       ReportType = "GARAGE"
	ReportInsulation   ReportType = "INSULATION"
	ReportFirestopping ReportType = "FIRESTOPPING"
	ReportStructural   ReportType = "STRUCTURAL"
	ReportAirBalancing ReportType = "AIR_BALANCING"
	ReportDailyField   ReportType = "DAILY_FIELD"
	ReportParapet      ReportType = "PARAPET"
)

// ReportTypes lists every known tag in a stable order.
func ReportTypes() []ReportType {
	return []ReportType{
		ReportConcrete,
		ReportFacade,
		ReportGarage,
		ReportInsulation,
		ReportFirestopping,
		ReportStructural,
		ReportAirBalancing,
		ReportDailyField,
		ReportParapet,
	}
}

// Identity is the authenticated caller extracted from the session cookie.
type Identity struct {
	SubjectID string
	Role      string
}

// Request captures one export call. The cookie value is the caller's own
// session credential, propagated into the browser so the report page
// authenticates as the original caller.
type Request struct {
	ReportID   string
	ReportType ReportType
	Caller     Identity
	Cookie     string
}

// Orientation selects the page orientation for capture.
type Orientation string

// Orientation values.
const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Margins are print margins in inches.
type Margins struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// LayoutProfile is the static per-report-type capture configuration.
type LayoutProfile struct {
	Type             ReportType
	Path             string
	Orientation      Orientation
	Margins          Margins
	Scale            float64
	PrimarySelector  string
	FallbackSelector string
	PhotoGallery     bool
}

// Landscape reports whether the profile captures in landscape.
func (p LayoutProfile) Landscape() bool {
	return p.Orientation == OrientationLandscape
}

// Artifact is the finished PDF plus its suggested download filename.
type Artifact struct {
	Bytes    []byte
	Filename string
}

// Filename builds the attachment name for a report type and id.
func Filename(t ReportType, reportID string) string {
	return fmt.Sprintf("%s_report_%s.pdf", strings.ToLower(string(t)), reportID)
}

// Outcome is the terminal result of one export, recorded for auditing.
type Outcome string

// Outcome values persisted in the audit trail.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// AuditRecord is written once per finished export.
type AuditRecord struct {
	ID            string
	SubjectID     string
	ReportID      string
	ReportType    ReportType
	Outcome       Outcome
	ErrorKind     string
	DurationMs    int64
	ArtifactBytes int
	ArtifactHash  string
	BlobURI       string
	CreatedAt     time.Time
}

// Event is published after an export is archived.
type Event struct {
	ID         string     `json:"id"`
	SubjectID  string     `json:"subject_id"`
	ReportID   string     `json:"report_id"`
	ReportType ReportType `json:"report_type"`
	Outcome    Outcome    `json:"outcome"`
	BlobURI    string     `json:"blob_uri,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ArchiveTask wraps a finished export queued for background archiving.
type ArchiveTask struct {
	Record   AuditRecord
	Artifact Artifact
}
