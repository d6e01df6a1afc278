package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// SafetyFilter matches treatment-like language stems anywhere in draft
// text, case-insensitively. Stems match as word prefixes, so "treat" also
// blocks "treatment" and "treated".
type SafetyFilter struct {
	stems   []string
	pattern *regexp.Regexp
}

// NewSafetyFilter compiles a filter from the configured blacklist stems
func NewSafetyFilter(stems []string) (*SafetyFilter, error) {
	if len(stems) == 0 {
		return nil, fmt.Errorf("safety filter requires at least one stem")
	}
	quoted := make([]string, 0, len(stems))
	for _, stem := range stems {
		stem = strings.TrimSpace(stem)
		if stem == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(stem)))
	}
	if len(quoted) == 0 {
		return nil, fmt.Errorf("safety filter requires at least one non-empty stem")
	}
	pattern, err := regexp.Compile(`(?i)\b(` + strings.Join(quoted, "|") + `)\w*\b`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile safety filter pattern: %w", err)
	}
	return &SafetyFilter{stems: quoted, pattern: pattern}, nil
}

// Contains reports whether text includes any blocked stem
func (f *SafetyFilter) Contains(text string) bool {
	return f.pattern.MatchString(text)
}

// Matches returns the unique blocked terms found in text, lowercased, in
// order of first appearance
func (f *SafetyFilter) Matches(text string) []string {
	var found []string
	seen := map[string]bool{}
	for _, match := range f.pattern.FindAllString(text, -1) {
		lowered := strings.ToLower(match)
		if !seen[lowered] {
			seen[lowered] = true
			found = append(found, lowered)
		}
	}
	return found
}
