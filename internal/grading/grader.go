// Package grading normalizes extracted claims and computes the run's
// aggregate conflict signal. The "materially overlapping topic" definition
// used for conflict pairing lives here, not in the verifier.
package grading

import (
	"strings"

	"github.com/egvia-interpret-server/internal/domain"
)

// Graded is the grading stage's output: the normalized claim set plus the
// aggregate conflict count.
type Graded struct {
	Claims        []domain.Claim
	ConflictCount int
}

// Grader assigns normalized strength labels and stance classifications and
// counts conflicts. Stateless and safe to share across concurrent runs.
type Grader struct{}

// NewGrader creates a grader
func NewGrader() *Grader {
	return &Grader{}
}

// Grade normalizes each claim's stance and strength and computes the
// conflict count: the number of contradict claims that have at least one
// opposing support claim in the same topic cluster.
func (g *Grader) Grade(req *domain.InterpretRequest, claims []domain.Claim, citations map[string]domain.Citation) *Graded {
	graded := make([]domain.Claim, 0, len(claims))
	for _, claim := range claims {
		claim.Stance = normalizeStance(claim.Stance)
		claim.Strength = normalizeStrength(claim.Strength)
		graded = append(graded, claim)
	}

	clusterSupport := map[string]int{}
	for _, claim := range graded {
		if claim.Stance == domain.SUPPORT {
			clusterSupport[clusterKey(req, citations[claim.CitationID])]++
		}
	}

	conflicts := 0
	for _, claim := range graded {
		if claim.Stance == domain.CONTRADICT && clusterSupport[clusterKey(req, citations[claim.CitationID])] > 0 {
			conflicts++
		}
	}

	return &Graded{Claims: graded, ConflictCount: conflicts}
}

// clusterKey groups claims that address the same topic: the run's gene and
// disease context, refined by whether the backing citation asserts a
// clinical classification or is literature-only.
func clusterKey(req *domain.InterpretRequest, citation domain.Citation) string {
	topic := "literature"
	if citation.Metadata["classification"] != "" {
		topic = "pathogenicity"
	}
	return strings.ToLower(strings.TrimSpace(req.Gene)) + "|" +
		strings.ToLower(strings.TrimSpace(req.DiseaseContext)) + "|" + topic
}

func normalizeStance(stance domain.Stance) domain.Stance {
	switch domain.Stance(strings.ToLower(string(stance))) {
	case domain.SUPPORT:
		return domain.SUPPORT
	case domain.CONTRADICT:
		return domain.CONTRADICT
	case domain.NEUTRAL:
		return domain.NEUTRAL
	}
	return domain.NEUTRAL
}

func normalizeStrength(strength domain.Strength) domain.Strength {
	switch strings.ToLower(string(strength)) {
	case "strong":
		return domain.STRONG
	case "moderate":
		return domain.MODERATE
	case "weak":
		return domain.WEAK
	}
	return domain.WEAK
}
