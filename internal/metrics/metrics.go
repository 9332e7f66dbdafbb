// Package metrics tracks process-local pipeline counters surfaced through the
// daemon status API.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics is a set of monotonically increasing counters. The zero value is
// ready for use and all methods are safe for concurrent callers.
type Metrics struct {
	itemsSubmitted          atomic.Int64
	duplicatesRejected      atomic.Int64
	itemsClassified         atomic.Int64
	escalations             atomic.Int64
	fallbacks               atomic.Int64
	classifyFailures        atomic.Int64
	snapshots               atomic.Int64
	lockContention          atomic.Int64
	cadenceSkips            atomic.Int64
	collectionsExpired      atomic.Int64
	fingerprintsPurged      atomic.Int64
	fingerprintDegradations atomic.Int64
	staleItemsReclaimed     atomic.Int64

	fastScored        atomic.Int64
	fastLatencyMillis atomic.Int64
	escScored         atomic.Int64
	escLatencyMillis  atomic.Int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	ItemsSubmitted          int64 `json:"items_submitted"`
	DuplicatesRejected      int64 `json:"duplicates_rejected"`
	ItemsClassified         int64 `json:"items_classified"`
	Escalations             int64 `json:"escalations"`
	Fallbacks               int64 `json:"fallbacks"`
	ClassifyFailures        int64 `json:"classify_failures"`
	Snapshots               int64 `json:"snapshots"`
	LockContention          int64 `json:"lock_contention"`
	CadenceSkips            int64 `json:"cadence_skips"`
	CollectionsExpired      int64 `json:"collections_expired"`
	FingerprintsPurged      int64 `json:"fingerprints_purged"`
	FingerprintDegradations int64 `json:"fingerprint_degradations"`
	StaleItemsReclaimed     int64 `json:"stale_items_reclaimed"`

	FastScored             int64 `json:"fast_scored"`
	FastLatencyMillis      int64 `json:"fast_latency_millis"`
	EscalatedScored        int64 `json:"escalated_scored"`
	EscalatedLatencyMillis int64 `json:"escalated_latency_millis"`
}

func (m *Metrics) ItemSubmitted()                { m.itemsSubmitted.Add(1) }
func (m *Metrics) DuplicateRejected()            { m.duplicatesRejected.Add(1) }
func (m *Metrics) ItemClassified()               { m.itemsClassified.Add(1) }
func (m *Metrics) Escalation()                   { m.escalations.Add(1) }
func (m *Metrics) Fallback()                     { m.fallbacks.Add(1) }
func (m *Metrics) ClassifyFailure()              { m.classifyFailures.Add(1) }
func (m *Metrics) SnapshotTaken()                { m.snapshots.Add(1) }
func (m *Metrics) LockContended()                { m.lockContention.Add(1) }
func (m *Metrics) CadenceSkip()                  { m.cadenceSkips.Add(1) }
func (m *Metrics) CollectionsExpiredBy(n int64)  { m.collectionsExpired.Add(n) }
func (m *Metrics) FingerprintsPurgedBy(n int64)  { m.fingerprintsPurged.Add(n) }
func (m *Metrics) FingerprintDegradation()       { m.fingerprintDegradations.Add(1) }
func (m *Metrics) StaleItemsReclaimedBy(n int64) { m.staleItemsReclaimed.Add(n) }

// TierScored records one completed scoring call and its latency.
func (m *Metrics) TierScored(escalated bool, elapsed time.Duration) {
	if escalated {
		m.escScored.Add(1)
		m.escLatencyMillis.Add(elapsed.Milliseconds())
		return
	}
	m.fastScored.Add(1)
	m.fastLatencyMillis.Add(elapsed.Milliseconds())
}

// Read returns a consistent-enough copy of the counters for status output.
func (m *Metrics) Read() Snapshot {
	return Snapshot{
		ItemsSubmitted:          m.itemsSubmitted.Load(),
		DuplicatesRejected:      m.duplicatesRejected.Load(),
		ItemsClassified:         m.itemsClassified.Load(),
		Escalations:             m.escalations.Load(),
		Fallbacks:               m.fallbacks.Load(),
		ClassifyFailures:        m.classifyFailures.Load(),
		Snapshots:               m.snapshots.Load(),
		LockContention:          m.lockContention.Load(),
		CadenceSkips:            m.cadenceSkips.Load(),
		CollectionsExpired:      m.collectionsExpired.Load(),
		FingerprintsPurged:      m.fingerprintsPurged.Load(),
		FingerprintDegradations: m.fingerprintDegradations.Load(),
		StaleItemsReclaimed:     m.staleItemsReclaimed.Load(),

		FastScored:             m.fastScored.Load(),
		FastLatencyMillis:      m.fastLatencyMillis.Load(),
		EscalatedScored:        m.escScored.Load(),
		EscalatedLatencyMillis: m.escLatencyMillis.Load(),
	}
}
