// Package api hosts the HTTP server, middleware, and export handler.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /export for PDF export of a single inspection report.
package api
