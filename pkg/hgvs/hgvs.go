// Package hgvs provides lightweight normalization of gene symbols and HGVS
// variant notation for retrieval query construction. It is deliberately
// permissive: inputs it cannot interpret pass through unchanged, since the
// pipeline treats gene and HGVS fields as free text.
package hgvs

import (
	"regexp"
	"strings"
)

// Kind classifies an HGVS notation by its coordinate prefix
type Kind string

const (
	Coding  Kind = "coding"
	Genomic Kind = "genomic"
	Protein Kind = "protein"
	Unknown Kind = "unknown"
)

var (
	// HUGO gene symbols: uppercase letters, digits, and hyphens.
	genePattern = regexp.MustCompile(`^[A-Z][A-Z0-9-]*$`)

	// RefSeq and Ensembl reference sequence accessions.
	accessionPattern = regexp.MustCompile(`^(N[CMPRG]_\d+(\.\d+)?|X[MR]_\d+(\.\d+)?|ENST\d+(\.\d+)?)$`)
)

// NormalizeGeneSymbol uppercases and trims a gene symbol. The second return
// value reports whether the result looks like a HUGO symbol.
func NormalizeGeneSymbol(symbol string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return "", false
	}
	return normalized, genePattern.MatchString(normalized)
}

// Notation is one parsed HGVS string. Description holds the coordinate part
// without the reference sequence accession.
type Notation struct {
	Accession   string
	Kind        Kind
	Description string
}

// Parse splits an HGVS string into its reference accession and description
// and classifies the coordinate type. Unparseable input comes back as an
// Unknown notation whose Description is the trimmed input.
func Parse(input string) Notation {
	trimmed := strings.TrimSpace(input)
	notation := Notation{Kind: Unknown, Description: trimmed}
	if trimmed == "" {
		return notation
	}

	if accession, description, ok := strings.Cut(trimmed, ":"); ok && accessionPattern.MatchString(accession) {
		notation.Accession = accession
		notation.Description = description
	}

	switch {
	case strings.HasPrefix(notation.Description, "c."):
		notation.Kind = Coding
	case strings.HasPrefix(notation.Description, "g."):
		notation.Kind = Genomic
	case strings.HasPrefix(notation.Description, "p."):
		notation.Kind = Protein
	}
	return notation
}

// SearchTerms returns the query terms worth issuing for an HGVS input: the
// input itself, plus the bare description when the input carries a
// reference accession. Terms are unique and ordered.
func SearchTerms(input string) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	terms := []string{trimmed}
	if notation := Parse(trimmed); notation.Accession != "" && notation.Description != "" {
		if notation.Description != trimmed {
			terms = append(terms, notation.Description)
		}
	}
	return terms
}
