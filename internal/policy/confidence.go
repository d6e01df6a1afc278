package policy

import "math"

// ConfidenceInputs are the only values the confidence computation may see.
// The function is pure: identical inputs always produce identical output.
type ConfidenceInputs struct {
	SourceCount        int
	ClaimCount         int
	StrongSupportCount int
	ConflictCount      int
	FailureCount       int
}

// ComputeConfidence maps the run's evidence state to a confidence value in
// [0,1]. The formula is a clamped linear score: base 0.9, plus 0.01 per
// source (capped at 3) and 0.02 per strong supporting claim (capped at 5),
// minus 0.15 per conflict pair and 0.10 per verification failure. A run
// with zero claims is pinned to 0.1. Monotonic in every input by
// construction.
func ComputeConfidence(in ConfidenceInputs) float64 {
	if in.ClaimCount == 0 {
		return 0.1
	}

	score := 0.9
	score += 0.01 * float64(capAt(in.SourceCount, 3))
	score += 0.02 * float64(capAt(in.StrongSupportCount, 5))
	score -= 0.15 * float64(in.ConflictCount)
	score -= 0.10 * float64(in.FailureCount)

	if score < 0.05 {
		score = 0.05
	}
	if score > 0.99 {
		score = 0.99
	}
	return math.Round(score*10000) / 10000
}

func capAt(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
}
