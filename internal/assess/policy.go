package assess

import "fmt"

// Batch size tiers. Runs up to the stable maximum proceed without
// confirmation, larger runs up to the absolute maximum require an
// explicit opt-in.
const (
	RecommendedBatchSize = 50
	MaxStableBatchSize   = 200
	AbsoluteMaxBatchSize = 1000
)

// Verdict is the gate decision for a requested batch size.
type Verdict int

const (
	Proceed Verdict = iota
	Confirm
	Reject
)

// Policy holds the configured batch size tiers.
type Policy struct {
	Recommended int
	MaxStable   int
	AbsoluteMax int
}

// DefaultPolicy returns the stock batch size tiers.
func DefaultPolicy() Policy {
	return Policy{
		Recommended: RecommendedBatchSize,
		MaxStable:   MaxStableBatchSize,
		AbsoluteMax: AbsoluteMaxBatchSize,
	}
}

// Evaluate gates a batch of n items. The message explains Confirm and
// Reject verdicts; batches above the recommended size proceed with an
// advisory note.
func (p Policy) Evaluate(n int) (Verdict, string) {
	switch {
	case n > p.AbsoluteMax:
		return Reject, fmt.Sprintf("batch of %d items exceeds the absolute maximum of %d, split the file", n, p.AbsoluteMax)
	case n > p.MaxStable:
		return Confirm, fmt.Sprintf("batch of %d items is above the stable limit of %d and may take a long time", n, p.MaxStable)
	case n > p.Recommended:
		return Proceed, fmt.Sprintf("batch of %d items is above the recommended size of %d", n, p.Recommended)
	default:
		return Proceed, ""
	}
}
