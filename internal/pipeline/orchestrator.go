// Package pipeline owns sequencing for one interpretation run: retrieval,
// claim extraction, evidence grading, synthesis, verification, and response
// assembly, in that order, with per-stage timings recorded unconditionally.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/egvia-interpret-server/internal/domain"
	"github.com/egvia-interpret-server/internal/generate"
	"github.com/egvia-interpret-server/internal/grading"
	"github.com/egvia-interpret-server/internal/policy"
	"github.com/egvia-interpret-server/pkg/external"
)

// Orchestrator runs the interpretation pipeline. One instance serves many
// concurrent runs; all per-run state lives in Run's locals.
type Orchestrator struct {
	retriever    external.Retriever
	extractor    generate.ClaimExtractor
	synthesizer  generate.Synthesizer
	grader       *grading.Grader
	gate         *policy.Engine
	stageTimeout time.Duration
	runDeadline  time.Duration
	logger       *logrus.Logger
}

// Options configures an orchestrator
type Options struct {
	Retriever    external.Retriever
	Extractor    generate.ClaimExtractor
	Synthesizer  generate.Synthesizer
	Gate         *policy.Engine
	StageTimeout time.Duration
	RunDeadline  time.Duration
	Logger       *logrus.Logger
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	stageTimeout := opts.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Second
	}
	runDeadline := opts.RunDeadline
	if runDeadline <= 0 {
		runDeadline = 25 * time.Second
	}
	return &Orchestrator{
		retriever:    opts.Retriever,
		extractor:    opts.Extractor,
		synthesizer:  opts.Synthesizer,
		grader:       grading.NewGrader(),
		gate:         opts.Gate,
		stageTimeout: stageTimeout,
		runDeadline:  runDeadline,
		logger:       opts.Logger,
	}
}

// Run executes one pipeline run and always returns a well-formed response
// for a valid request. The only error it returns is a malformed-request
// rejection before the run starts; every downstream condition resolves
// in-band, ultimately as an abstention.
func (o *Orchestrator) Run(ctx context.Context, req *domain.InterpretRequest) (*domain.InterpretResponse, error) {
	if violations := domain.ValidateRequest(req); len(violations) > 0 {
		return nil, domain.NewRequestError(violations)
	}

	ctx, cancel := context.WithTimeout(ctx, o.runDeadline)
	defer cancel()

	totalStart := StartTimer()
	requestID := NewRequestID()
	timings := map[string]int64{}
	failures := make([]string, 0)

	log := o.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"gene":       req.Gene,
		"hgvs":       req.HGVS,
	})
	log.Info("Starting interpretation run")

	// Stage 1: retrieval
	stageStart := StartTimer()
	citations, queries, retrievalFailures := o.runRetrieval(ctx, req)
	failures = append(failures, retrievalFailures...)
	timings["retrieval"] = ElapsedMS(stageStart)

	// Stage 2: claim extraction
	stageStart = StartTimer()
	claims, extractionFailures := o.runExtraction(ctx, req, citations)
	failures = append(failures, extractionFailures...)
	timings["extraction"] = ElapsedMS(stageStart)

	// Stage 3: evidence grading
	stageStart = StartTimer()
	citationIndex := make(map[string]domain.Citation, len(citations))
	for _, citation := range citations {
		citationIndex[citation.CitationID] = citation
	}
	graded := o.grader.Grade(req, claims, citationIndex)
	evidenceTable := buildEvidenceTable(graded.Claims, citationIndex)
	timings["grading"] = ElapsedMS(stageStart)

	// Stage 4: synthesis, from structured claims only
	stageStart = StartTimer()
	draft, synthesisFailures := o.runSynthesis(ctx, req, graded)
	failures = append(failures, synthesisFailures...)
	timings["synthesis"] = ElapsedMS(stageStart)

	// Stage 5: verification
	stageStart = StartTimer()
	strongSupport := 0
	for _, claim := range graded.Claims {
		if claim.Stance == domain.SUPPORT && claim.Strength == domain.STRONG {
			strongSupport++
		}
	}
	verdict := o.gate.Verify(&policy.VerifyInput{
		Draft:              *draft,
		EvidenceTable:      evidenceTable,
		SourceCount:        len(citations),
		ClaimCount:         len(graded.Claims),
		ConflictCount:      graded.ConflictCount,
		StrongSupportCount: strongSupport,
		PriorFailures:      failures,
	})
	failures = append(failures, verdict.Failures...)
	timings["verification"] = ElapsedMS(stageStart)
	timings["total"] = ElapsedMS(totalStart)

	finalDraft := verdict.Draft
	if verdict.State == policy.ABSTAINED {
		// The orchestrator is the only component that replaces a draft
		// wholesale with abstention content.
		finalDraft = abstentionDraft(len(citations), len(graded.Claims))
	}

	response := &domain.InterpretResponse{
		RequestID:       requestID,
		Draft:           finalDraft,
		EvidenceTable:   evidenceTable,
		ConfidencePanel: verdict.Panel,
		Trace: domain.Trace{
			RequestID:            requestID,
			RetrievalQueries:     queries,
			SourceCount:          len(citations),
			ClaimCount:           len(graded.Claims),
			ConflictCount:        graded.ConflictCount,
			VerificationChecks:   verdict.Checks,
			VerificationFailures: failures,
			TimingsMS:            timings,
		},
	}

	if violations := domain.ValidateResponse(response); len(violations) > 0 {
		// A contract violation here is a defect in the pipeline itself.
		log.WithField("violations", violations).Error("Assembled response violates contract")
	}

	log.WithFields(logrus.Fields{
		"state":     string(verdict.State),
		"sources":   len(citations),
		"claims":    len(graded.Claims),
		"conflicts": graded.ConflictCount,
		"abstain":   verdict.Panel.Abstain,
		"total_ms":  timings["total"],
	}).Info("Interpretation run completed")

	return response, nil
}

// runRetrieval invokes the retriever under the stage deadline. Failures
// and timeouts yield an empty citation set, never an error; queries are
// recorded regardless of outcome.
func (o *Orchestrator) runRetrieval(ctx context.Context, req *domain.InterpretRequest) ([]domain.Citation, []string, []string) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	var citations []domain.Citation
	var queries, failures []string

	result, err := o.retriever.Retrieve(stageCtx, req)
	if result != nil {
		citations = result.Citations
		queries = result.Queries
		failures = append(failures, result.Failures...)
	}
	if err != nil {
		failures = append(failures, fmt.Sprintf("retrieval.%s: %v", o.retriever.Name(), err))
	}

	valid := citations[:0]
	for _, citation := range citations {
		if violations := domain.ValidateCitation(&citation); len(violations) > 0 {
			failures = append(failures, fmt.Sprintf("retrieval: dropped citation %s: %v", citation.CitationID, violations))
			continue
		}
		valid = append(valid, citation)
	}

	if len(queries) == 0 {
		// An empty query list is a trace defect; ask the configured
		// retriever for its deterministic queries before falling back to
		// the request-derived ones.
		queries = o.retriever.Queries(req)
	}
	if len(queries) == 0 {
		queries = external.BuildClinVarQueries(req)
	}
	return valid, queries, failures
}

// runExtraction invokes the claim extractor, retrying once on failure, then
// filters schema-invalid claims and claims bound to unknown citations.
// Dangling claims are dropped, never corrected.
func (o *Orchestrator) runExtraction(ctx context.Context, req *domain.InterpretRequest, citations []domain.Citation) ([]domain.Claim, []string) {
	var failures []string

	candidates, err := o.extractor.Extract(ctx, req, citations)
	if err != nil {
		failures = append(failures, fmt.Sprintf("extraction: %v", err))
		candidates, err = o.extractor.Extract(ctx, req, citations)
		if err != nil {
			failures = append(failures, fmt.Sprintf("extraction: retry failed: %v", err))
			return nil, failures
		}
	}

	known := make(map[string]bool, len(citations))
	for _, citation := range citations {
		known[citation.CitationID] = true
	}

	var claims []domain.Claim
	for _, claim := range candidates {
		if violations := domain.ValidateClaim(&claim); len(violations) > 0 {
			failures = append(failures, fmt.Sprintf("extraction: dropped claim %s: %v", claim.ClaimID, violations))
			continue
		}
		if !known[claim.CitationID] {
			failures = append(failures, fmt.Sprintf(
				"extraction: dropped claim %s: citation_id %s not among retrieved citations", claim.ClaimID, claim.CitationID))
			continue
		}
		claims = append(claims, claim)
	}
	return claims, failures
}

// runSynthesis invokes the synthesizer over graded claims only, retrying
// once; a failed synthesis degrades to the insufficient-evidence draft.
func (o *Orchestrator) runSynthesis(ctx context.Context, req *domain.InterpretRequest, graded *grading.Graded) (*domain.Draft, []string) {
	var failures []string

	input := &generate.SynthesisInput{
		Gene:           req.Gene,
		HGVS:           req.HGVS,
		DiseaseContext: req.DiseaseContext,
		Claims:         graded.Claims,
		ConflictCount:  graded.ConflictCount,
	}

	draft, err := o.synthesizer.Synthesize(ctx, input)
	if err != nil {
		failures = append(failures, fmt.Sprintf("synthesis: %v", err))
		draft, err = o.synthesizer.Synthesize(ctx, input)
	}
	if err != nil || draft == nil {
		if err != nil {
			failures = append(failures, fmt.Sprintf("synthesis: retry failed: %v", err))
		}
		fallback := abstentionDraft(0, len(graded.Claims))
		return &fallback, failures
	}
	return draft, failures
}

func buildEvidenceTable(claims []domain.Claim, citations map[string]domain.Citation) []domain.EvidenceTableEntry {
	entries := make([]domain.EvidenceTableEntry, 0, len(claims))
	for _, claim := range claims {
		citation, ok := citations[claim.CitationID]
		if !ok {
			continue
		}
		entries = append(entries, domain.EvidenceTableEntry{Citation: citation, Claim: claim})
	}
	return entries
}

// abstentionDraft is the canned uncertainty-forward draft used when the
// gate engine abstains
func abstentionDraft(sourceCount, claimCount int) domain.Draft {
	whatIsKnown := "No validated evidence claims were produced in this run."
	limitations := "No sources were retrieved in this run, so no claims could be validated."
	if sourceCount > 0 {
		whatIsKnown = fmt.Sprintf("%d evidence source(s) were retrieved, but no citation-grounded interpretation could be validated.", sourceCount)
		limitations = "Evidence sources were retrieved, but verification could not validate a citation-grounded narrative."
	}
	conflicting := "No direct claim conflicts were identified because no claims were extracted."
	if claimCount > 0 {
		conflicting = "Extracted claims did not pass verification; conflicting or unsupported content was withheld."
	}
	return domain.Draft{
		Summary:             "Evidence is currently insufficient to produce a citation-grounded interpretation.",
		WhatIsKnown:         whatIsKnown,
		ConflictingEvidence: conflicting,
		Limitations:         limitations,
		Uncertainty:         "Uncertainty is high due to absence of validated supporting claims and citations.",
		Disclaimer:          "For assistive evidence synthesis only; not for diagnostic or therapeutic decision use.",
	}
}
