// Package daemon hosts the long-running bobbind process: it enforces
// single-instance execution with a file lock, drives the pipeline manager,
// and exposes the HTTP API the CLI talks to.
package daemon
