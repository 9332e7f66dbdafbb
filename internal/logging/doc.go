// Package logging centralizes logger construction and structured field
// conventions for the pipeline.
//
// Loggers are log/slog throughout. Two output formats are supported: a
// compact console format for interactive use and JSON for machine ingestion.
// Field* constants define the structured keys shared across components so
// dashboards can rely on stable names, and WithContext derives attributes
// (item id, group id, stage, correlation id) from a request context.
package logging
