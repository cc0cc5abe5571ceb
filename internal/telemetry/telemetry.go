// Package telemetry unifies OpenTelemetry tracing (Google Cloud) and Prometheus metrics.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sitewise/inspection-exporter/internal/config"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// --- CUSTOM METRIC DEFINITIONS ---

var (
	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_exports_total",
			Help: "Total number of export requests, labeled by report type and outcome.",
		},
		[]string{"report_type", "outcome"},
	)

	exportDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exporter_export_duration_seconds",
			Help:    "Histogram of end-to-end export latencies, labeled by report type.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45},
		},
		[]string{"report_type"},
	)

	browserLaunchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_browser_launches_total",
			Help: "Total headless browser launches, labeled by result.",
		},
		[]string{"result"},
	)

	selectorFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_selector_fallbacks_total",
			Help: "Times the readiness wait fell back to the secondary selector.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"method", "route"},
	)

	archiveQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exporter_archive_queue_depth",
			Help: "Number of finished exports waiting for background archiving.",
		},
	)

	archiveTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_archive_tasks_total",
			Help: "Archive tasks processed, labeled by result.",
		},
		[]string{"result"},
	)
)

var (
	initOnce  sync.Once
	traceProv *sdktrace.TracerProvider
	meterProv *metric.MeterProvider
	initErr   error
)

// --- INITIALIZATION ---

// Init sets up tracing (Google Cloud when a project is configured) and
// metrics (Prometheus registry shared with the promauto vars above).
func Init(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, *metric.MeterProvider, error) {
	initOnce.Do(func() {
		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(cfg.Application.ServiceName),
				semconv.ServiceVersion(cfg.Application.Version),
			),
		)
		if err != nil {
			initErr = fmt.Errorf("failed to create resource: %w", err)
			return
		}

		var traceExporter sdktrace.SpanExporter
		if cfg.Application.ProjectID != "" {
			traceExporter, err = texporter.New(texporter.WithProjectID(cfg.Application.ProjectID))
			if err != nil {
				initErr = fmt.Errorf("failed to create google trace exporter: %w", err)
				return
			}
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		}
		if traceExporter != nil {
			opts = append(opts, sdktrace.WithBatcher(traceExporter))
		}

		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(
			propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		)

		promExporter, err := otelprom.New(
			otelprom.WithRegisterer(prometheus.DefaultRegisterer),
		)
		if err != nil {
			initErr = fmt.Errorf("failed to create prometheus exporter: %w", err)
			return
		}

		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(promExporter),
		)
		otel.SetMeterProvider(mp)
		traceProv = tp
		meterProv = mp
	})
	return traceProv, meterProv, initErr
}

// --- HTTP HANDLER & MIDDLEWARE ---

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// --- HELPER FUNCTIONS ---

// ObserveExport records the terminal result of one export request.
func ObserveExport(reportType string, outcome string, duration time.Duration) {
	exportsTotal.WithLabelValues(reportType, outcome).Inc()
	exportDurationSeconds.WithLabelValues(reportType).Observe(duration.Seconds())
}

// ObserveBrowserLaunch records a browser launch attempt.
func ObserveBrowserLaunch(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	browserLaunchesTotal.WithLabelValues(result).Inc()
}

// ObserveSelectorFallback records a readiness wait that needed the fallback selector.
func ObserveSelectorFallback() {
	selectorFallbacksTotal.Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetArchiveQueueDepth updates the archive backlog gauge.
func SetArchiveQueueDepth(depth int) {
	archiveQueueDepth.Set(float64(depth))
}

// ObserveArchiveTask records an archive task result.
func ObserveArchiveTask(result string) {
	archiveTasksTotal.WithLabelValues(result).Inc()
}
