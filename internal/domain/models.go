package domain

// Core Enums and Types

// VariantType represents the type of genetic variant accepted by the pipeline
type VariantType string

const (
	SNV   VariantType = "SNV"
	INDEL VariantType = "indel"
)

// AssayContext represents the sequencing context of the interpretation request
type AssayContext string

const (
	TUMOR_ONLY   AssayContext = "tumor-only"
	TUMOR_NORMAL AssayContext = "tumor-normal"
	PANEL        AssayContext = "panel"
	WES          AssayContext = "WES"
	// SOMATIC is accepted as a compatibility alias for tumor-only inputs.
	SOMATIC AssayContext = "somatic"
)

// Source identifies an admissible evidence source
type Source string

const (
	SourceClinVar Source = "ClinVar"
	SourcePubMed  Source = "PubMed"
)

// Stance represents whether a claim supports or contradicts pathogenicity
// in the request's disease context
type Stance string

const (
	SUPPORT    Stance = "support"
	CONTRADICT Stance = "contradict"
	NEUTRAL    Stance = "neutral"
)

// Strength represents the strength label assigned to a claim's evidence
type Strength string

const (
	STRONG   Strength = "Strong"
	MODERATE Strength = "Moderate"
	WEAK     Strength = "Weak"
)

// Request/Response Models

// InterpretRequest represents an incoming variant interpretation request.
// Immutable once received; identifies one pipeline run.
type InterpretRequest struct {
	Gene           string       `json:"gene"`
	HGVS           string       `json:"hgvs"`
	VariantType    VariantType  `json:"variant_type"`
	DiseaseContext string       `json:"disease_context"`
	AssayContext   AssayContext `json:"assay_context"`
	UserQuestion   string       `json:"user_question,omitempty"`
}

// Citation represents one evidentiary anchor retrieved for a run. Citations
// are the only admissible anchors; a citation exists before any claim may
// reference it.
type Citation struct {
	CitationID string            `json:"citation_id"`
	Source     Source            `json:"source"`
	Title      string            `json:"title,omitempty"`
	Year       int               `json:"year,omitempty"`
	URL        string            `json:"url,omitempty"`
	RawID      string            `json:"raw_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Claim represents a single assertion extracted from evidence and bound to
// exactly one citation in the same run
type Claim struct {
	ClaimID    string   `json:"claim_id"`
	Text       string   `json:"text"`
	CitationID string   `json:"citation_id"`
	Stance     Stance   `json:"supports_or_contradicts"`
	Strength   Strength `json:"evidence_strength"`
	Year       int      `json:"year,omitempty"`
}

// EvidenceTableEntry pairs exactly one citation with exactly one claim
type EvidenceTableEntry struct {
	Citation Citation `json:"citation"`
	Claim    Claim    `json:"claim"`
}

// Draft represents the structured interpretation narrative
type Draft struct {
	Summary             string `json:"summary"`
	WhatIsKnown         string `json:"what_is_known"`
	ConflictingEvidence string `json:"conflicting_evidence"`
	Limitations         string `json:"limitations"`
	Uncertainty         string `json:"uncertainty"`
	Disclaimer          string `json:"disclaimer"`
}

// DraftSectionNames lists the required draft sections in canonical order
var DraftSectionNames = []string{
	"summary",
	"what_is_known",
	"conflicting_evidence",
	"limitations",
	"uncertainty",
	"disclaimer",
}

// Section returns the named section's text. Unknown names return an empty
// string.
func (d *Draft) Section(name string) string {
	switch name {
	case "summary":
		return d.Summary
	case "what_is_known":
		return d.WhatIsKnown
	case "conflicting_evidence":
		return d.ConflictingEvidence
	case "limitations":
		return d.Limitations
	case "uncertainty":
		return d.Uncertainty
	case "disclaimer":
		return d.Disclaimer
	}
	return ""
}

// SetSection replaces the named section's text. Unknown names are ignored.
func (d *Draft) SetSection(name, text string) {
	switch name {
	case "summary":
		d.Summary = text
	case "what_is_known":
		d.WhatIsKnown = text
	case "conflicting_evidence":
		d.ConflictingEvidence = text
	case "limitations":
		d.Limitations = text
	case "uncertainty":
		d.Uncertainty = text
	case "disclaimer":
		d.Disclaimer = text
	}
}

// ConfidencePanel carries the gate engine's confidence and abstention output
type ConfidencePanel struct {
	Confidence     float64  `json:"confidence"`
	Reasons        []string `json:"reasons"`
	Abstain        bool     `json:"abstain"`
	AbstainReasons []string `json:"abstain_reasons"`
}

// Trace is the per-run diagnostic record of queries, counts, and timings
type Trace struct {
	RequestID            string           `json:"request_id"`
	RetrievalQueries     []string         `json:"retrieval_queries"`
	SourceCount          int              `json:"source_count"`
	ClaimCount           int              `json:"claim_count"`
	ConflictCount        int              `json:"conflict_count"`
	VerificationChecks   []string         `json:"verification_checks"`
	VerificationFailures []string         `json:"verification_failures"`
	TimingsMS            map[string]int64 `json:"timings_ms"`
}

// InterpretResponse represents the final assembled response for one run.
// Constructed once by the orchestrator after verification completes; never
// mutated afterwards.
type InterpretResponse struct {
	RequestID       string               `json:"request_id"`
	Draft           Draft                `json:"draft"`
	EvidenceTable   []EvidenceTableEntry `json:"evidence_table"`
	ConfidencePanel ConfidencePanel      `json:"confidence_panel"`
	Trace           Trace                `json:"trace"`
}
