package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/export"
	"github.com/sitewise/inspection-exporter/internal/ratelimit"
	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

// Exporter runs the full export pipeline for one request.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (export.Artifact, error)
}

// Config controls the HTTP surface.
type Config struct {
	CookieName     string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the validator, limiter, and exporter.
type Server struct {
	router    chi.Router
	validator export.TokenValidator
	limiter   *ratelimit.Limiter
	exporter  Exporter
	cfg       Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	validator export.TokenValidator,
	limiter *ratelimit.Limiter,
	exporter Exporter,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "sitewise_session"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		validator: validator,
		limiter:   limiter,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Post("/export", s.exportReport)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type exportRequest struct {
	ReportID   string `json:"reportId"`
	ReportType string `json:"reportType"`
}

// exportReport handles POST /export. The session cookie is verified before
// any pipeline work so an unauthenticated caller never costs a probe, let
// alone a browser launch.
func (s *Server) exportReport(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(s.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	caller, err := s.validator.Validate(cookie.Value)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ReportID == "" {
		writeError(w, http.StatusBadRequest, "reportId required")
		return
	}
	reportType, err := export.ParseReportType(req.ReportType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report type")
		return
	}

	if s.limiter != nil && !s.limiter.Allow(caller.SubjectID) {
		writeError(w, http.StatusTooManyRequests, "Too many export requests")
		return
	}

	artifact, err := s.exporter.Export(r.Context(), export.Request{
		ReportID:   req.ReportID,
		ReportType: reportType,
		Caller:     caller,
		Cookie:     cookie.Value,
	})
	if err != nil {
		status, msg := classify(err)
		writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Bytes); err != nil {
		s.logger.Error("write PDF response failed", zap.Error(err))
	}
}

// classify maps a pipeline error to an HTTP status and a client-safe
// message. Internal detail stays in the logs.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, export.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, export.ErrInvalidReportType):
		return http.StatusBadRequest, "Invalid report type"
	case errors.Is(err, export.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, export.ErrReportNotFound):
		return http.StatusNotFound, "Report not found"
	case errors.Is(err, export.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many export requests"
	case errors.Is(err, export.ErrRenderTimeout):
		return http.StatusInternalServerError, "Report rendering timed out"
	default:
		return http.StatusInternalServerError, "Failed to generate PDF"
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Error responses are always a JSON object, including the timeout cutoff.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
