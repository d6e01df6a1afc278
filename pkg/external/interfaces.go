package external

import (
	"context"

	"github.com/egvia-interpret-server/internal/domain"
)

// RetrievalResult is the canonical output of a retrieval tool. Queries are
// always populated, even when the fetch itself failed; an empty query list
// on a successful call is a defect.
type RetrievalResult struct {
	Citations []domain.Citation `json:"citations"`
	Queries   []string          `json:"queries"`
	Failures  []string          `json:"failures,omitempty"`
}

// Retriever is the boundary contract for one evidence source. Retrieve
// returns a non-nil error only for transport-level failures; the returned
// result still carries the queries that were issued. Recoverable per-record
// problems go into Failures.
type Retriever interface {
	Name() string
	Queries(req *domain.InterpretRequest) []string
	Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error)
}
