package eval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conformingResponse(t *testing.T) map[string]any {
	t.Helper()
	payload := `{
		"request_id": "req-1",
		"draft": {
			"summary": "1 structured claim(s) address BRAF c.1799T>A [C1].",
			"what_is_known": "ClinVar VCV000013961 classifies BRAF c.1799T>A as Pathogenic [C1].",
			"conflicting_evidence": "No direct claim conflicts were identified among the extracted claims.",
			"limitations": "This synthesis draws only on the citations listed in the evidence table.",
			"uncertainty": "Uncertainty is moderate given 1 supporting claim(s).",
			"disclaimer": "For assistive evidence synthesis only."
		},
		"evidence_table": [
			{
				"citation": {"citation_id": "C1", "source": "ClinVar"},
				"claim": {"claim_id": "CL1", "text": "t", "citation_id": "C1", "supports_or_contradicts": "support", "evidence_strength": "Strong"}
			}
		],
		"confidence_panel": {"confidence": 0.93, "reasons": [], "abstain": false, "abstain_reasons": []},
		"trace": {
			"request_id": "req-1",
			"retrieval_queries": ["BRAF[gene] AND c.1799T>A"],
			"source_count": 1,
			"claim_count": 1,
			"conflict_count": 0,
			"verification_checks": ["claim_citation_binding"],
			"verification_failures": [],
			"timings_ms": {"retrieval": 5, "total": 12}
		}
	}`
	var response map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &response))
	return response
}

func TestCheckContractPresence_Conforming(t *testing.T) {
	assert.Empty(t, CheckContractPresence(conformingResponse(t)))
}

func TestCheckContractPresence_MissingKeys(t *testing.T) {
	response := conformingResponse(t)
	delete(response, "evidence_table")
	delete(response["draft"].(map[string]any), "disclaimer")

	errors := CheckContractPresence(response)
	assert.Contains(t, errors, "missing top-level key 'evidence_table'")
	assert.Contains(t, errors, "draft missing key 'disclaimer'")
}

func TestCheckContractPresence_WrongTypes(t *testing.T) {
	response := conformingResponse(t)
	response["draft"].(map[string]any)["summary"] = 42
	response["evidence_table"] = "not a list"

	errors := CheckContractPresence(response)
	assert.Contains(t, errors, "draft.summary must be a string")
	assert.Contains(t, errors, "evidence_table must be a list")
}

func TestCheckTraceInvariants_Conforming(t *testing.T) {
	assert.Empty(t, CheckTraceInvariants(conformingResponse(t)))
}

func TestCheckTraceInvariants_Violations(t *testing.T) {
	response := conformingResponse(t)
	trace := response["trace"].(map[string]any)
	trace["request_id"] = "other"
	trace["retrieval_queries"] = []any{}
	trace["timings_ms"].(map[string]any)["total"] = float64(0)

	errors := CheckTraceInvariants(response)
	assert.Contains(t, errors, "trace.request_id must match top-level request_id")
	assert.Contains(t, errors, "trace.retrieval_queries must be a non-empty list")
	assert.Contains(t, errors, "trace.timings_ms.total must be > 0")
}

func TestCheckTraceInvariants_NonStringRequestIDs(t *testing.T) {
	// A backend returning object-typed ids must come back as a check
	// failure, not a crash.
	response := conformingResponse(t)
	response["request_id"] = map[string]any{"v": float64(1)}
	response["trace"].(map[string]any)["request_id"] = map[string]any{"v": float64(1)}

	var errors []string
	assert.NotPanics(t, func() {
		errors = CheckTraceInvariants(response)
	})
	assert.Contains(t, errors, "request_id and trace.request_id must be strings")
}

func TestCheckAbstention(t *testing.T) {
	response := conformingResponse(t)

	assert.Empty(t, CheckAbstention(response, false))
	// An unexpected abstention is not an error; only a missing one is.
	response["confidence_panel"].(map[string]any)["abstain"] = true
	assert.Empty(t, CheckAbstention(response, true))
	assert.Empty(t, CheckAbstention(response, false))

	response["confidence_panel"].(map[string]any)["abstain"] = false
	errors := CheckAbstention(response, true)
	assert.Contains(t, errors, "expected abstain=true but response abstain=false")
}

func TestCheckTreatmentLanguage(t *testing.T) {
	response := conformingResponse(t)
	assert.Empty(t, CheckTreatmentLanguage(response))

	response["draft"].(map[string]any)["summary"] = "Treatment with vemurafenib is recommended."
	errors := CheckTreatmentLanguage(response)
	assert.Contains(t, errors, "draft.summary contains banned term stem 'treat'")
	assert.Contains(t, errors, "draft.summary contains banned term stem 'recommend'")
}

func TestCheckTreatmentLanguage_StemBoundaries(t *testing.T) {
	response := conformingResponse(t)
	draft := response["draft"].(map[string]any)

	// "therapeutic" does not extend the stem "therapy", and "retreat" does
	// not start at a word boundary.
	draft["summary"] = "Not for therapeutic decision use; the retreat was scenic."
	assert.Empty(t, CheckTreatmentLanguage(response))

	draft["summary"] = "Dosed carefully."
	errors := CheckTreatmentLanguage(response)
	assert.Contains(t, errors, "draft.summary contains banned term stem 'dose'")
}

func TestRunAllChecks_AggregatesEverything(t *testing.T) {
	response := conformingResponse(t)
	assert.Empty(t, RunAllChecks(response, false))

	response["draft"].(map[string]any)["summary"] = "Therapy is advised."
	trace := response["trace"].(map[string]any)
	trace["retrieval_queries"] = []any{}

	errors := RunAllChecks(response, false)
	assert.Len(t, errors, 2)
}
