package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		request    *InterpretRequest
		wantFields []string
	}{
		{
			name: "Valid minimal request",
			request: &InterpretRequest{
				VariantType:  SNV,
				AssayContext: PANEL,
			},
			wantFields: nil,
		},
		{
			name: "Somatic alias accepted",
			request: &InterpretRequest{
				Gene:         "BRAF",
				HGVS:         "c.1799T>A",
				VariantType:  SNV,
				AssayContext: SOMATIC,
			},
			wantFields: nil,
		},
		{
			name: "Unknown variant type",
			request: &InterpretRequest{
				VariantType:  "CNV",
				AssayContext: WES,
			},
			wantFields: []string{"variant_type"},
		},
		{
			name: "Unknown assay context",
			request: &InterpretRequest{
				VariantType:  INDEL,
				AssayContext: "germline",
			},
			wantFields: []string{"assay_context"},
		},
		{
			name:       "Empty request fails both enums",
			request:    &InterpretRequest{},
			wantFields: []string{"variant_type", "assay_context"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateRequest(tt.request)
			require.Len(t, violations, len(tt.wantFields))
			for i, field := range tt.wantFields {
				assert.Equal(t, field, violations[i].Field)
			}
		})
	}
}

func TestValidateRequest_Nil(t *testing.T) {
	violations := ValidateRequest(nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "request", violations[0].Field)
}

func TestValidateClaim(t *testing.T) {
	valid := Claim{
		ClaimID:    "CL1",
		Text:       "ClinVar VCV000001 classifies BRAF c.1799T>A as Pathogenic.",
		CitationID: "C1",
		Stance:     SUPPORT,
		Strength:   STRONG,
	}

	t.Run("Valid claim", func(t *testing.T) {
		assert.Empty(t, ValidateClaim(&valid))
	})

	t.Run("Missing fields", func(t *testing.T) {
		claim := Claim{Stance: NEUTRAL, Strength: WEAK}
		violations := ValidateClaim(&claim)
		require.Len(t, violations, 3)
	})

	t.Run("Bad stance", func(t *testing.T) {
		claim := valid
		claim.Stance = "maybe"
		violations := ValidateClaim(&claim)
		require.Len(t, violations, 1)
		assert.Equal(t, "supports_or_contradicts", violations[0].Field)
	})

	t.Run("Bad strength", func(t *testing.T) {
		claim := valid
		claim.Strength = "Decisive"
		violations := ValidateClaim(&claim)
		require.Len(t, violations, 1)
		assert.Equal(t, "evidence_strength", violations[0].Field)
	})
}

func TestValidateCitation(t *testing.T) {
	t.Run("Valid citation", func(t *testing.T) {
		citation := Citation{CitationID: "C1", Source: SourceClinVar}
		assert.Empty(t, ValidateCitation(&citation))
	})

	t.Run("Unknown source", func(t *testing.T) {
		citation := Citation{CitationID: "C1", Source: "OMIM"}
		violations := ValidateCitation(&citation)
		require.Len(t, violations, 1)
		assert.Equal(t, "source", violations[0].Field)
	})

	t.Run("Missing id", func(t *testing.T) {
		citation := Citation{Source: SourcePubMed}
		violations := ValidateCitation(&citation)
		require.Len(t, violations, 1)
		assert.Equal(t, "citation_id", violations[0].Field)
	})
}

func TestValidateEntry_MismatchedBinding(t *testing.T) {
	entry := EvidenceTableEntry{
		Citation: Citation{CitationID: "C1", Source: SourceClinVar},
		Claim: Claim{
			ClaimID:    "CL1",
			Text:       "text",
			CitationID: "C2",
			Stance:     NEUTRAL,
			Strength:   WEAK,
		},
	}
	violations := ValidateEntry(&entry)
	require.Len(t, violations, 1)
	assert.Equal(t, "claim.citation_id", violations[0].Field)
}

func validResponse() *InterpretResponse {
	citation := Citation{CitationID: "C1", Source: SourceClinVar}
	claim := Claim{
		ClaimID:    "CL1",
		Text:       "ClinVar VCV000001 classifies BRAF c.1799T>A as Pathogenic.",
		CitationID: "C1",
		Stance:     SUPPORT,
		Strength:   STRONG,
	}
	return &InterpretResponse{
		RequestID: "req-1",
		Draft: Draft{
			Summary:             "s.",
			WhatIsKnown:         "w.",
			ConflictingEvidence: "c.",
			Limitations:         "l.",
			Uncertainty:         "u.",
			Disclaimer:          "d.",
		},
		EvidenceTable: []EvidenceTableEntry{{Citation: citation, Claim: claim}},
		ConfidencePanel: ConfidencePanel{
			Confidence:     0.9,
			Reasons:        []string{"ok"},
			AbstainReasons: []string{},
		},
		Trace: Trace{
			RequestID:        "req-1",
			RetrievalQueries: []string{"BRAF[gene] AND c.1799T>A"},
			TimingsMS:        map[string]int64{"total": 12},
		},
	}
}

func TestValidateResponse(t *testing.T) {
	t.Run("Valid response", func(t *testing.T) {
		assert.Empty(t, ValidateResponse(validResponse()))
	})

	t.Run("Trace request id mismatch", func(t *testing.T) {
		response := validResponse()
		response.Trace.RequestID = "other"
		violations := ValidateResponse(response)
		require.NotEmpty(t, violations)
		assert.Equal(t, "trace.request_id", violations[0].Field)
	})

	t.Run("Empty retrieval queries", func(t *testing.T) {
		response := validResponse()
		response.Trace.RetrievalQueries = nil
		violations := ValidateResponse(response)
		require.NotEmpty(t, violations)
		assert.Equal(t, "trace.retrieval_queries", violations[0].Field)
	})

	t.Run("Zero total timing", func(t *testing.T) {
		response := validResponse()
		response.Trace.TimingsMS["total"] = 0
		violations := ValidateResponse(response)
		require.NotEmpty(t, violations)
		assert.Equal(t, "trace.timings_ms.total", violations[0].Field)
	})

	t.Run("Dangling claim citation", func(t *testing.T) {
		response := validResponse()
		response.EvidenceTable[0].Claim.CitationID = "C9"
		violations := ValidateResponse(response)
		require.NotEmpty(t, violations)
	})

	t.Run("Empty draft section", func(t *testing.T) {
		response := validResponse()
		response.Draft.WhatIsKnown = ""
		violations := ValidateResponse(response)
		require.Len(t, violations, 1)
		assert.Equal(t, "draft.what_is_known", violations[0].Field)
	})
}

func TestDraftSectionRoundTrip(t *testing.T) {
	var draft Draft
	for _, name := range DraftSectionNames {
		draft.SetSection(name, "text for "+name)
	}
	for _, name := range DraftSectionNames {
		assert.Equal(t, "text for "+name, draft.Section(name))
	}
}
