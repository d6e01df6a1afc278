// Package eval implements the deterministic evaluation harness: it loads
// JSONL cases, posts them to a running backend, and checks the response
// contract without invoking any generative stage itself.
package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// requestRequiredFields are the string fields every case must carry
var requestRequiredFields = []string{
	"gene",
	"hgvs",
	"variant_type",
	"disease_context",
	"assay_context",
}

// Case is one evaluation case from the JSONL dataset
type Case struct {
	CaseID          string
	Request         map[string]any
	ExpectedAbstain bool
}

// LoadCases loads JSONL cases from disk. Blank lines are skipped; any
// malformed line is a dataset error.
func LoadCases(path string) ([]Case, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset file not found: %s", path)
	}
	defer file.Close()

	var cases []Case
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			return nil, fmt.Errorf("%s:%d is not a valid JSON object: %w", path, lineNo, err)
		}

		evalCase, err := buildCase(payload, lineNo, path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, evalCase)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("dataset is empty: %s", path)
	}
	return cases, nil
}

func buildCase(payload map[string]any, lineNo int, path string) (Case, error) {
	expected, ok := payload["expected"].(map[string]any)
	if !ok {
		return Case{}, fmt.Errorf("%s:%d must include object field 'expected'", path, lineNo)
	}
	expectedAbstain, ok := expected["expected_abstain"].(bool)
	if !ok {
		return Case{}, fmt.Errorf("%s:%d expected.expected_abstain must be boolean", path, lineNo)
	}

	caseID := fmt.Sprintf("line-%d", lineNo)
	if raw, present := payload["case_id"]; present {
		id, ok := raw.(string)
		if !ok || strings.TrimSpace(id) == "" {
			return Case{}, fmt.Errorf("%s:%d case_id must be a non-empty string", path, lineNo)
		}
		caseID = strings.TrimSpace(id)
	}

	request := map[string]any{}
	for _, field := range requestRequiredFields {
		value, ok := payload[field].(string)
		if !ok {
			return Case{}, fmt.Errorf("%s:%d missing string field '%s'", path, lineNo, field)
		}
		request[field] = value
	}
	if raw, present := payload["user_question"]; present && raw != nil {
		question, ok := raw.(string)
		if !ok {
			return Case{}, fmt.Errorf("%s:%d optional field 'user_question' must be string or null", path, lineNo)
		}
		request["user_question"] = question
	}

	return Case{
		CaseID:          caseID,
		Request:         request,
		ExpectedAbstain: expectedAbstain,
	}, nil
}
