package domain

import (
	"fmt"
	"strings"
)

// Violation represents one field-level schema violation
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// The validators below are pure functions with no I/O. They run at every
// stage boundary; an object that fails validation is treated as absent by
// the caller, never silently coerced.

var validVariantTypes = map[VariantType]bool{
	SNV:   true,
	INDEL: true,
}

var validAssayContexts = map[AssayContext]bool{
	TUMOR_ONLY:   true,
	TUMOR_NORMAL: true,
	PANEL:        true,
	WES:          true,
	SOMATIC:      true,
}

var validSources = map[Source]bool{
	SourceClinVar: true,
	SourcePubMed:  true,
}

var validStances = map[Stance]bool{
	SUPPORT:    true,
	CONTRADICT: true,
	NEUTRAL:    true,
}

var validStrengths = map[Strength]bool{
	STRONG:   true,
	MODERATE: true,
	WEAK:     true,
}

// ValidateRequest checks the inbound request's basic shape. Gene and HGVS
// may be empty strings; the enumerated fields must carry known values.
func ValidateRequest(req *InterpretRequest) []Violation {
	var violations []Violation
	if req == nil {
		return []Violation{{Field: "request", Message: "must be an object"}}
	}
	if !validVariantTypes[req.VariantType] {
		violations = append(violations, Violation{
			Field:   "variant_type",
			Message: fmt.Sprintf("must be one of [SNV indel], got %q", string(req.VariantType)),
		})
	}
	if !validAssayContexts[req.AssayContext] {
		violations = append(violations, Violation{
			Field:   "assay_context",
			Message: fmt.Sprintf("must be one of [tumor-only tumor-normal panel WES somatic], got %q", string(req.AssayContext)),
		})
	}
	return violations
}

// ValidateCitation checks one citation against the canonical contract
func ValidateCitation(c *Citation) []Violation {
	var violations []Violation
	if c == nil {
		return []Violation{{Field: "citation", Message: "must be an object"}}
	}
	if strings.TrimSpace(c.CitationID) == "" {
		violations = append(violations, Violation{Field: "citation_id", Message: "is required"})
	}
	if !validSources[c.Source] {
		violations = append(violations, Violation{
			Field:   "source",
			Message: fmt.Sprintf("must be one of [ClinVar PubMed], got %q", string(c.Source)),
		})
	}
	return violations
}

// ValidateClaim checks one claim against the canonical contract. Referential
// integrity against the run's citations is checked separately by the caller.
func ValidateClaim(c *Claim) []Violation {
	var violations []Violation
	if c == nil {
		return []Violation{{Field: "claim", Message: "must be an object"}}
	}
	if strings.TrimSpace(c.ClaimID) == "" {
		violations = append(violations, Violation{Field: "claim_id", Message: "is required"})
	}
	if strings.TrimSpace(c.Text) == "" {
		violations = append(violations, Violation{Field: "text", Message: "is required"})
	}
	if strings.TrimSpace(c.CitationID) == "" {
		violations = append(violations, Violation{Field: "citation_id", Message: "is required"})
	}
	if !validStances[c.Stance] {
		violations = append(violations, Violation{
			Field:   "supports_or_contradicts",
			Message: fmt.Sprintf("must be one of [support contradict neutral], got %q", string(c.Stance)),
		})
	}
	if !validStrengths[c.Strength] {
		violations = append(violations, Violation{
			Field:   "evidence_strength",
			Message: fmt.Sprintf("must be one of [Strong Moderate Weak], got %q", string(c.Strength)),
		})
	}
	return violations
}

// ValidateEntry checks one evidence table entry, including that the claim
// is bound to the paired citation
func ValidateEntry(e *EvidenceTableEntry) []Violation {
	var violations []Violation
	if e == nil {
		return []Violation{{Field: "entry", Message: "must be an object"}}
	}
	violations = append(violations, ValidateCitation(&e.Citation)...)
	violations = append(violations, ValidateClaim(&e.Claim)...)
	if e.Claim.CitationID != "" && e.Claim.CitationID != e.Citation.CitationID {
		violations = append(violations, Violation{
			Field:   "claim.citation_id",
			Message: fmt.Sprintf("%q does not match paired citation %q", e.Claim.CitationID, e.Citation.CitationID),
		})
	}
	return violations
}

// ValidateResponse checks the assembled response against the contract
// invariants: referential integrity of the evidence table, non-empty
// retrieval queries, positive total timing, and trace/request id agreement.
func ValidateResponse(r *InterpretResponse) []Violation {
	var violations []Violation
	if r == nil {
		return []Violation{{Field: "response", Message: "must be an object"}}
	}
	if strings.TrimSpace(r.RequestID) == "" {
		violations = append(violations, Violation{Field: "request_id", Message: "is required"})
	}
	if r.Trace.RequestID != r.RequestID {
		violations = append(violations, Violation{Field: "trace.request_id", Message: "must match top-level request_id"})
	}
	if len(r.Trace.RetrievalQueries) == 0 {
		violations = append(violations, Violation{Field: "trace.retrieval_queries", Message: "must be non-empty"})
	}
	if r.Trace.TimingsMS["total"] <= 0 {
		violations = append(violations, Violation{Field: "trace.timings_ms.total", Message: "must be > 0"})
	}
	if r.ConfidencePanel.Confidence < 0 || r.ConfidencePanel.Confidence > 1 {
		violations = append(violations, Violation{Field: "confidence_panel.confidence", Message: "must be within [0,1]"})
	}
	for _, name := range DraftSectionNames {
		if strings.TrimSpace(r.Draft.Section(name)) == "" {
			violations = append(violations, Violation{
				Field:   "draft." + name,
				Message: "is required",
			})
		}
	}

	known := make(map[string]bool, len(r.EvidenceTable))
	for _, entry := range r.EvidenceTable {
		known[entry.Citation.CitationID] = true
	}
	for i, entry := range r.EvidenceTable {
		violations = append(violations, ValidateEntry(&entry)...)
		if !known[entry.Claim.CitationID] {
			violations = append(violations, Violation{
				Field:   fmt.Sprintf("evidence_table[%d].claim.citation_id", i),
				Message: fmt.Sprintf("%q does not resolve within evidence_table", entry.Claim.CitationID),
			})
		}
	}
	return violations
}
