package export

import "errors"

// Error kinds for the export pipeline. Every failure surfaced by the
// pipeline wraps exactly one of these sentinels; handlers map them to HTTP
// statuses with errors.Is and never retry internally.
var (
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrInvalidReportType       = errors.New("invalid report type")
	ErrForbidden               = errors.New("forbidden")
	ErrReportNotFound          = errors.New("report not found")
	ErrRateLimited             = errors.New("rate limited")
	ErrRenderEngineUnavailable = errors.New("render engine unavailable")
	ErrRenderTimeout           = errors.New("render timeout")
	ErrEmptyArtifact           = errors.New("empty artifact")
	ErrUnexpected              = errors.New("unexpected failure")
)

// Kind returns the stable name of the sentinel err wraps, for audit rows
// and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidReportType):
		return "invalid_report_type"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrReportNotFound):
		return "report_not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRenderEngineUnavailable):
		return "render_engine_unavailable"
	case errors.Is(err, ErrRenderTimeout):
		return "render_timeout"
	case errors.Is(err, ErrEmptyArtifact):
		return "empty_artifact"
	default:
		return "unexpected"
	}
}
