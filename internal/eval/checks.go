package eval

import (
	"fmt"
	"regexp"
	"strings"
)

// The checks below run over the decoded generic JSON response, not the
// server's own types, so the harness validates the wire contract rather
// than whatever the backend happens to marshal.

// RequiredTopLevelKeys are the response keys every case must produce
var RequiredTopLevelKeys = []string{
	"request_id",
	"draft",
	"evidence_table",
	"confidence_panel",
	"trace",
}

// RequiredDraftKeys are the draft section keys every response must carry
var RequiredDraftKeys = []string{
	"summary",
	"what_is_known",
	"conflicting_evidence",
	"limitations",
	"uncertainty",
	"disclaimer",
}

// TreatmentBlacklist is the harness's own copy of the banned term stems
var TreatmentBlacklist = []string{"treat", "therapy", "dose", "prescribe", "recommend"}

func expectObject(value any, name string, errors *[]string) map[string]any {
	object, ok := value.(map[string]any)
	if !ok {
		*errors = append(*errors, fmt.Sprintf("%s must be an object", name))
		return nil
	}
	return object
}

// CheckContractPresence checks required top-level and draft keys
func CheckContractPresence(response map[string]any) []string {
	var errors []string

	for _, key := range RequiredTopLevelKeys {
		if _, ok := response[key]; !ok {
			errors = append(errors, fmt.Sprintf("missing top-level key '%s'", key))
		}
	}

	draft := expectObject(response["draft"], "draft", &errors)
	for _, key := range RequiredDraftKeys {
		value, ok := draft[key]
		if !ok {
			errors = append(errors, fmt.Sprintf("draft missing key '%s'", key))
			continue
		}
		if _, ok := value.(string); !ok {
			errors = append(errors, fmt.Sprintf("draft.%s must be a string", key))
		}
	}

	if raw, ok := response["evidence_table"]; ok {
		if _, isList := raw.([]any); !isList && raw != nil {
			errors = append(errors, "evidence_table must be a list")
		}
	}

	if panel := expectObject(response["confidence_panel"], "confidence_panel", &errors); panel != nil {
		if raw, ok := panel["abstain"]; ok {
			if _, isBool := raw.(bool); !isBool {
				errors = append(errors, "confidence_panel.abstain must be a boolean")
			}
		}
	}

	return errors
}

// CheckTraceInvariants checks trace consistency and timing invariants
func CheckTraceInvariants(response map[string]any) []string {
	var errors []string
	trace := expectObject(response["trace"], "trace", &errors)
	if trace == nil {
		return errors
	}

	// Both ids are asserted to string before comparing; comparing raw any
	// values panics when the backend returns non-comparable JSON types.
	traceID, traceOK := trace["request_id"].(string)
	topID, topOK := response["request_id"].(string)
	if !traceOK || !topOK {
		errors = append(errors, "request_id and trace.request_id must be strings")
	} else if traceID != topID {
		errors = append(errors, "trace.request_id must match top-level request_id")
	}

	queries, ok := trace["retrieval_queries"].([]any)
	if !ok || len(queries) == 0 {
		errors = append(errors, "trace.retrieval_queries must be a non-empty list")
	}

	timings, ok := trace["timings_ms"].(map[string]any)
	if !ok {
		errors = append(errors, "trace.timings_ms must be an object")
		return errors
	}
	total, ok := timings["total"].(float64)
	if !ok {
		errors = append(errors, "trace.timings_ms.total must be numeric")
	} else if total <= 0 {
		errors = append(errors, "trace.timings_ms.total must be > 0")
	}

	return errors
}

// CheckAbstention checks the abstention expectation for one case
func CheckAbstention(response map[string]any, expectedAbstain bool) []string {
	var errors []string
	panel := expectObject(response["confidence_panel"], "confidence_panel", &errors)
	if panel == nil {
		return errors
	}

	abstain, ok := panel["abstain"].(bool)
	if !ok {
		errors = append(errors, "confidence_panel.abstain must be a boolean")
		return errors
	}
	if expectedAbstain && !abstain {
		errors = append(errors, "expected abstain=true but response abstain=false")
	}
	return errors
}

var blacklistPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(TreatmentBlacklist))
	for _, stem := range TreatmentBlacklist {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(stem)+`\w*\b`))
	}
	return patterns
}()

// CheckTreatmentLanguage checks all draft sections for banned term stems
func CheckTreatmentLanguage(response map[string]any) []string {
	var errors []string
	draft := expectObject(response["draft"], "draft", &errors)
	if draft == nil {
		return errors
	}

	for _, section := range RequiredDraftKeys {
		value, ok := draft[section].(string)
		if !ok {
			continue
		}
		lowered := strings.ToLower(value)
		for i, pattern := range blacklistPatterns {
			if pattern.MatchString(lowered) {
				errors = append(errors, fmt.Sprintf("draft.%s contains banned term stem '%s'", section, TreatmentBlacklist[i]))
			}
		}
	}
	return errors
}

// RunAllChecks runs every deterministic check and returns a flat error list
func RunAllChecks(response map[string]any, expectedAbstain bool) []string {
	var errors []string
	errors = append(errors, CheckContractPresence(response)...)
	errors = append(errors, CheckTraceInvariants(response)...)
	errors = append(errors, CheckAbstention(response, expectedAbstain)...)
	errors = append(errors, CheckTreatmentLanguage(response)...)
	return errors
}
