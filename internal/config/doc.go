// Package config loads and validates the TOML configuration file.
//
// File values are the boot-time view. A handful of operational knobs
// (confidence threshold, escalation enablement, retention windows, readiness
// minimum, cadence floor) are re-read from the runtime settings table per
// operation so operators can change them without restarting the daemon; the
// file values only seed that table on first open.
package config
