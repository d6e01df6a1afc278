// Package policy implements the verifier gate engine: citation binding,
// safety-language filtering, unsupported-content removal, confidence, and
// the abstention decision. The engine is stateless and shared read-only
// across concurrent runs; content violations always degrade to rewrite or
// abstention, never to an error.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/egvia-interpret-server/internal/domain"
)

// State is a terminal verification state for one run
type State string

const (
	PASSED    State = "PASSED"
	REWRITTEN State = "REWRITTEN"
	ABSTAINED State = "ABSTAINED"
)

// VerificationChecks names the checks the engine runs, in order
var VerificationChecks = []string{
	"claim_citation_binding",
	"safety_language_filter",
	"unsupported_content_removal",
	"confidence_computation",
	"abstention_gate",
}

// InsufficientSectionPlaceholder replaces a required section emptied by
// content removal
const InsufficientSectionPlaceholder = "Insufficient validated evidence is available for this section."

// VerifyInput carries one run's draft and evidence state into verification
type VerifyInput struct {
	Draft              domain.Draft
	EvidenceTable      []domain.EvidenceTableEntry
	SourceCount        int
	ClaimCount         int
	ConflictCount      int
	StrongSupportCount int
	// PriorFailures are failures recorded by earlier stages; they count
	// against confidence alongside the gate's own findings.
	PriorFailures []string
}

// VerifyResult is the engine's terminal output for one run
type VerifyResult struct {
	State    State
	Draft    domain.Draft
	Panel    domain.ConfidencePanel
	Checks   []string
	Failures []string
}

// Engine is the gate engine. Construct once at startup from immutable
// policy configuration.
type Engine struct {
	filter                *SafetyFilter
	conflictRateThreshold float64
	confidenceFloor       float64
	maxPasses             int
	logger                *logrus.Logger
}

// NewEngine creates a gate engine from policy configuration
func NewEngine(cfg domain.PolicyConfig, logger *logrus.Logger) (*Engine, error) {
	filter, err := NewSafetyFilter(cfg.BlacklistStems)
	if err != nil {
		return nil, err
	}
	maxPasses := cfg.MaxVerificationPasses
	if maxPasses < 1 {
		maxPasses = 2
	}
	return &Engine{
		filter:                filter,
		conflictRateThreshold: cfg.ConflictRateThreshold,
		confidenceFloor:       cfg.ConfidenceFloor,
		maxPasses:             maxPasses,
		logger:                logger,
	}, nil
}

var markerPattern = regexp.MustCompile(`\[(C\d+)\]`)

// Verify runs the bounded verification loop over one draft. Each pass
// strikes unbound or unsafe sentences; a pass with strikes triggers one
// re-verification of the edited draft. Exceeding the pass limit forces
// abstention.
func (e *Engine) Verify(in *VerifyInput) *VerifyResult {
	known := make(map[string]bool, len(in.EvidenceTable))
	for _, entry := range in.EvidenceTable {
		known[entry.Citation.CitationID] = true
	}

	draft := in.Draft
	var failures []string
	rewritten := false
	forcedAbstain := false

	for pass := 1; ; pass++ {
		strikes := e.verifyPass(&draft, known, &failures)
		if strikes == 0 {
			break
		}
		rewritten = true
		if pass >= e.maxPasses {
			forcedAbstain = true
			failures = append(failures, fmt.Sprintf("abstention_gate: verification pass limit (%d) exceeded", e.maxPasses))
			break
		}
	}

	confidence := ComputeConfidence(ConfidenceInputs{
		SourceCount:        in.SourceCount,
		ClaimCount:         in.ClaimCount,
		StrongSupportCount: in.StrongSupportCount,
		ConflictCount:      in.ConflictCount,
		FailureCount:       len(in.PriorFailures) + len(failures),
	})

	panel := e.decide(in, confidence, rewritten, forcedAbstain)

	state := PASSED
	if rewritten {
		state = REWRITTEN
	}
	if panel.Abstain {
		state = ABSTAINED
	}

	e.logger.WithFields(logrus.Fields{
		"state":      string(state),
		"confidence": panel.Confidence,
		"failures":   len(failures),
		"conflicts":  in.ConflictCount,
	}).Info("Verification completed")

	return &VerifyResult{
		State:    state,
		Draft:    draft,
		Panel:    panel,
		Checks:   append([]string{}, VerificationChecks...),
		Failures: failures,
	}
}

// verifyPass scans every section once, striking sentences that reference
// unknown citations or contain blocked language. A required section emptied
// by removal is replaced with the standard placeholder. Returns the number
// of struck sentences.
func (e *Engine) verifyPass(draft *domain.Draft, known map[string]bool, failures *[]string) int {
	strikes := 0
	for _, name := range domain.DraftSectionNames {
		text := draft.Section(name)
		sentences := splitSentences(text)
		kept := make([]string, 0, len(sentences))

		for _, sentence := range sentences {
			if unknown := unknownMarkers(sentence, known); len(unknown) > 0 {
				strikes++
				*failures = append(*failures, fmt.Sprintf(
					"claim_citation_binding: draft.%s references unknown citation %s",
					name, strings.Join(unknown, ", ")))
				continue
			}
			if matches := e.filter.Matches(sentence); len(matches) > 0 {
				strikes++
				*failures = append(*failures, fmt.Sprintf(
					"safety_language_filter: draft.%s contains blocked term(s) %s",
					name, strings.Join(matches, ", ")))
				continue
			}
			kept = append(kept, sentence)
		}

		rebuilt := strings.Join(kept, " ")
		if strings.TrimSpace(rebuilt) == "" {
			rebuilt = InsufficientSectionPlaceholder
		}
		draft.SetSection(name, rebuilt)
	}
	return strikes
}

// decide computes the abstention decision and assembles the panel
func (e *Engine) decide(in *VerifyInput, confidence float64, rewritten, forcedAbstain bool) domain.ConfidencePanel {
	reasons := []string{
		fmt.Sprintf("%d source(s), %d claim(s), %d conflict(s) considered.", in.SourceCount, in.ClaimCount, in.ConflictCount),
	}
	if rewritten {
		reasons = append(reasons, "Draft content was removed during verification.")
	}

	var abstainReasons []string
	if in.ClaimCount == 0 {
		if in.SourceCount == 0 {
			abstainReasons = append(abstainReasons, "No sources were retrieved for this run.")
		}
		abstainReasons = append(abstainReasons,
			"No supporting citations are available.",
			"Insufficient evidence for citation-grounded interpretation.")
	} else {
		conflictRate := float64(in.ConflictCount) / float64(in.ClaimCount)
		if conflictRate > e.conflictRateThreshold {
			abstainReasons = append(abstainReasons, fmt.Sprintf(
				"Contradiction rate %.2f exceeds threshold %.2f.", conflictRate, e.conflictRateThreshold))
		}
	}
	if confidence < e.confidenceFloor {
		abstainReasons = append(abstainReasons, fmt.Sprintf(
			"Confidence %.2f is below the configured floor %.2f.", confidence, e.confidenceFloor))
	}
	if forcedAbstain {
		abstainReasons = append(abstainReasons, "Verification pass limit exceeded.")
	}

	abstain := len(abstainReasons) > 0
	if abstain {
		reasons = append(reasons, "Interpretation is abstained; see abstain_reasons.")
	}
	if abstainReasons == nil {
		abstainReasons = []string{}
	}

	return domain.ConfidencePanel{
		Confidence:     confidence,
		Reasons:        reasons,
		Abstain:        abstain,
		AbstainReasons: abstainReasons,
	}
}

func unknownMarkers(sentence string, known map[string]bool) []string {
	var unknown []string
	for _, match := range markerPattern.FindAllStringSubmatch(sentence, -1) {
		if !known[match[1]] {
			unknown = append(unknown, match[1])
		}
	}
	return unknown
}

// splitSentences splits text at sentence boundaries: a period followed by
// whitespace or end of text. Periods inside HGVS tokens (c.1799T>A) do not
// split because they are not followed by whitespace.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '.' {
			continue
		}
		if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t' {
			sentence := strings.TrimSpace(text[start : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
