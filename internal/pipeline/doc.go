// Package pipeline coordinates the ingestion queue: worker poll loops that
// claim and classify items, maintenance sweeps, and the snapshot request
// flow that hands frozen batches to downstream consumers.
package pipeline
