package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/egvia-interpret-server/internal/domain"
)

// SynthesisInput is the only data a synthesizer can see: the graded claim
// set plus topical framing. It deliberately carries no raw retrieval text
// and no free-form user question content, so the "no free-form external
// facts" rule holds structurally rather than by convention.
type SynthesisInput struct {
	Gene           string
	HGVS           string
	DiseaseContext string
	Claims         []domain.Claim
	ConflictCount  int
}

// Synthesizer is the collaborator boundary for draft synthesis
type Synthesizer interface {
	Synthesize(ctx context.Context, input *SynthesisInput) (*domain.Draft, error)
}

// TemplateSynthesizer is the default deterministic synthesizer. Every
// claim-bearing sentence it emits carries the claim's citation marker, so
// the draft is citation-bound by construction; the gate engine still
// verifies it independently.
type TemplateSynthesizer struct{}

// NewTemplateSynthesizer creates the default synthesizer
func NewTemplateSynthesizer() *TemplateSynthesizer {
	return &TemplateSynthesizer{}
}

// Synthesize implements the Synthesizer interface
func (s *TemplateSynthesizer) Synthesize(ctx context.Context, input *SynthesisInput) (*domain.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input.Claims) == 0 {
		return insufficientEvidenceDraft(), nil
	}

	var supporting, contradicting, neutral []domain.Claim
	for _, claim := range input.Claims {
		switch claim.Stance {
		case domain.SUPPORT:
			supporting = append(supporting, claim)
		case domain.CONTRADICT:
			contradicting = append(contradicting, claim)
		default:
			neutral = append(neutral, claim)
		}
	}

	subject := subjectLine(input)
	draft := &domain.Draft{
		Summary:             s.summary(subject, input.Claims, len(supporting), len(contradicting), len(neutral)),
		WhatIsKnown:         s.claimSentences(append(append([]domain.Claim{}, supporting...), neutral...)),
		ConflictingEvidence: s.conflicting(contradicting, input.ConflictCount),
		Limitations:         "This synthesis draws only on the citations listed in the evidence table; evidence sources beyond ClinVar and PubMed were not consulted.",
		Uncertainty:         s.uncertainty(len(supporting), len(contradicting), len(neutral), input.ConflictCount),
		Disclaimer:          "For assistive evidence synthesis only; not for diagnostic or therapeutic decision use.",
	}
	return draft, nil
}

func subjectLine(input *SynthesisInput) string {
	parts := []string{}
	if g := strings.TrimSpace(input.Gene); g != "" {
		parts = append(parts, g)
	}
	if h := strings.TrimSpace(input.HGVS); h != "" {
		parts = append(parts, h)
	}
	subject := strings.Join(parts, " ")
	if subject == "" {
		subject = "the queried variant"
	}
	if d := strings.TrimSpace(input.DiseaseContext); d != "" {
		subject = subject + " in " + d
	}
	return subject
}

func (s *TemplateSynthesizer) summary(subject string, claims []domain.Claim, supporting, contradicting, neutral int) string {
	markers := make([]string, 0, len(claims))
	for _, claim := range claims {
		markers = append(markers, marker(claim.CitationID))
	}
	return fmt.Sprintf(
		"%d structured claim(s) address %s: %d supporting, %d contradicting, and %d neutral %s.",
		len(claims), subject, supporting, contradicting, neutral, strings.Join(markers, ""),
	)
}

func (s *TemplateSynthesizer) claimSentences(claims []domain.Claim) string {
	if len(claims) == 0 {
		return "No supporting or neutral claims were produced for this variant."
	}
	sentences := make([]string, 0, len(claims))
	for _, claim := range claims {
		sentences = append(sentences, claimSentence(claim))
	}
	return strings.Join(sentences, " ")
}

func (s *TemplateSynthesizer) conflicting(contradicting []domain.Claim, conflictCount int) string {
	if len(contradicting) == 0 {
		return "No direct claim conflicts were identified among the extracted claims."
	}
	sentences := make([]string, 0, len(contradicting)+1)
	for _, claim := range contradicting {
		sentences = append(sentences, claimSentence(claim))
	}
	if conflictCount > 0 {
		sentences = append(sentences, fmt.Sprintf("%d contradicting claim(s) oppose supporting claims on the same topic.", conflictCount))
	}
	return strings.Join(sentences, " ")
}

func (s *TemplateSynthesizer) uncertainty(supporting, contradicting, neutral, conflictCount int) string {
	level := "high"
	if supporting > 0 && conflictCount == 0 {
		level = "moderate"
	}
	if supporting > 1 && contradicting == 0 {
		level = "low"
	}
	return fmt.Sprintf(
		"Uncertainty is %s given %d supporting, %d contradicting, and %d neutral claim(s).",
		level, supporting, contradicting, neutral,
	)
}

// claimSentence renders one claim as a sentence ending with its citation
// marker, e.g. "... as Pathogenic [C1]."
func claimSentence(claim domain.Claim) string {
	text := strings.TrimSuffix(strings.TrimSpace(claim.Text), ".")
	return fmt.Sprintf("%s %s.", text, marker(claim.CitationID))
}

func marker(citationID string) string {
	return "[" + citationID + "]"
}

func insufficientEvidenceDraft() *domain.Draft {
	return &domain.Draft{
		Summary:             "Evidence is currently insufficient to produce a citation-grounded interpretation.",
		WhatIsKnown:         "No validated evidence claims were produced in this run.",
		ConflictingEvidence: "No direct claim conflicts were identified because no claims were extracted.",
		Limitations:         "No validated claims were available to this synthesis; the evidence table is empty.",
		Uncertainty:         "Uncertainty is high due to absence of supporting claims and citations.",
		Disclaimer:          "For assistive evidence synthesis only; not for diagnostic or therapeutic decision use.",
	}
}
