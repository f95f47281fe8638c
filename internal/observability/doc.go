// Package observability provides structured logging, tracing and metrics
// for the query pipeline.
//
// This package implements:
//   - zap loggers in JSON (production) or console (development) form
//   - OpenTelemetry tracing exported over OTLP/HTTP, off unless enabled
//   - OpenTelemetry counters and histograms for gate decisions
package observability
