// Package review runs the per-item annotation flow: fast scoring, threshold
// routing, optional escalation, and the single transactional annotation
// write that also appends the item to its group's building collection.
package review
