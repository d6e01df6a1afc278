package external

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/egvia-interpret-server/internal/domain"
)

// ResilientRetriever wraps an evidence source with a circuit breaker so a
// flapping upstream fails fast instead of consuming the stage deadline.
// When the breaker is open the result still carries the source's queries,
// preserving the trace invariant.
type ResilientRetriever struct {
	inner   Retriever
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientRetriever wraps a retriever with a circuit breaker
func NewResilientRetriever(inner Retriever, logger *logrus.Logger) *ResilientRetriever {
	settings := gobreaker.Settings{
		Name:        "retrieval." + inner.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Retrieval circuit breaker state change")
		},
	}

	return &ResilientRetriever{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Name implements the Retriever interface
func (r *ResilientRetriever) Name() string {
	return r.inner.Name()
}

// Queries implements the Retriever interface
func (r *ResilientRetriever) Queries(req *domain.InterpretRequest) []string {
	return r.inner.Queries(req)
}

// Retrieve implements the Retriever interface
func (r *ResilientRetriever) Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error) {
	value, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Retrieve(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &RetrievalResult{Queries: r.inner.Queries(req)}, err
		}
		if result, ok := value.(*RetrievalResult); ok && result != nil {
			return result, err
		}
		return &RetrievalResult{Queries: r.inner.Queries(req)}, err
	}
	result, ok := value.(*RetrievalResult)
	if !ok || result == nil {
		return &RetrievalResult{Queries: r.inner.Queries(req)}, nil
	}
	return result, nil
}
