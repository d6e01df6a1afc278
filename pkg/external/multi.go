package external

import (
	"context"
	"fmt"
	"sync"

	"github.com/egvia-interpret-server/internal/domain"
)

// MultiRetriever fans out to the configured evidence sources and merges
// their outputs into one deduplicated citation set. Source-level failures
// are recorded, never raised; queries are preserved even for failed sources.
type MultiRetriever struct {
	retrievers []Retriever
}

// NewMultiRetriever creates a composite retriever over the given sources
func NewMultiRetriever(retrievers ...Retriever) *MultiRetriever {
	return &MultiRetriever{retrievers: retrievers}
}

// Name implements the Retriever interface
func (m *MultiRetriever) Name() string {
	return "multi"
}

// Queries implements the Retriever interface
func (m *MultiRetriever) Queries(req *domain.InterpretRequest) []string {
	var queries []string
	for _, r := range m.retrievers {
		queries = append(queries, r.Queries(req)...)
	}
	return dedupeStrings(queries)
}

type citationKey struct {
	source domain.Source
	rawID  string
	url    string
	title  string
	year   int
}

// Retrieve executes all sources concurrently and merges their results in
// registration order, so the merged output is deterministic for identical
// source outputs. Citation ids are reassigned C1..Cn after deduplication.
func (m *MultiRetriever) Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error) {
	results := make([]*RetrievalResult, len(m.retrievers))
	errs := make([]error, len(m.retrievers))

	var wg sync.WaitGroup
	for i, r := range m.retrievers {
		wg.Add(1)
		go func(i int, r Retriever) {
			defer wg.Done()
			results[i], errs[i] = r.Retrieve(ctx, req)
		}(i, r)
	}
	wg.Wait()

	merged := &RetrievalResult{}
	seen := make(map[citationKey]bool)

	for i, r := range m.retrievers {
		result := results[i]
		if result == nil {
			result = &RetrievalResult{Queries: r.Queries(req)}
		}
		merged.Queries = append(merged.Queries, result.Queries...)
		merged.Failures = append(merged.Failures, result.Failures...)
		if errs[i] != nil {
			merged.Failures = append(merged.Failures, fmt.Sprintf("retrieval.%s: %v", r.Name(), errs[i]))
			continue
		}
		for _, citation := range result.Citations {
			key := citationKey{
				source: citation.Source,
				rawID:  citation.RawID,
				url:    citation.URL,
				title:  citation.Title,
				year:   citation.Year,
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			citation.CitationID = fmt.Sprintf("C%d", len(merged.Citations)+1)
			merged.Citations = append(merged.Citations, citation)
		}
	}

	merged.Queries = dedupeStrings(merged.Queries)
	merged.Failures = dedupeStrings(merged.Failures)
	return merged, nil
}
