// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, group IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     messages uniform, and the typed outcome errors (duplicate, locked,
//     not ready, cadence denied) that callers branch on with errors.Is.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across the system.
package services
