// Package classifier provides the two scoring tiers that annotate content
// items with tags, a summary, and a confidence value.
package classifier

import "context"

// Input is the material sent to a scoring tier. Model, when set, overrides
// the tier's configured model for this call; runtime model tuning flows
// through here.
type Input struct {
	Title string
	Body  string
	Group string
	Model string
}

// Result is one tier's annotation proposal.
type Result struct {
	Tags       []string
	Summary    string
	Confidence float64
}

// Scorer annotates content. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, input Input) (Result, error)
	HealthCheck(ctx context.Context) error
}
