package rag

import (
	"context"
	"errors"

	"github.com/upb/rag-gatekeeper/internal/policy"
	"github.com/upb/rag-gatekeeper/internal/similarity"
	"github.com/upb/rag-gatekeeper/models"
)

// ErrIndexUnavailable is returned when the vector index cannot be reached.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Hit is one raw result of a vector search.
type Hit struct {
	Content  string
	Metadata models.DocumentMetadata
	Distance float64
}

// Index is a vector store supporting filtered nearest-neighbour search.
type Index interface {
	// Query returns at most k hits ordered by ascending distance, restricted
	// to documents matching the predicate.
	Query(ctx context.Context, embedding []float32, k int, filter policy.Predicate) ([]Hit, error)
	// Metric reports the distance function Query ranks by.
	Metric() similarity.Metric
	// Documents lists every indexed document grouped by source, ordered by
	// source. It is not filtered and is meant for administrators only.
	Documents(ctx context.Context) ([]models.DocumentSummary, error)
	// Ping checks the index is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer grounded in the evidence.
type Generator interface {
	Generate(ctx context.Context, query string, evidence []models.RetrievedCandidate, soft bool) (string, error)
}

// ToCandidates converts raw hits into scored candidates.
func ToCandidates(hits []Hit, n similarity.Normalizer) []models.RetrievedCandidate {
	out := make([]models.RetrievedCandidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.RetrievedCandidate{
			Content:    h.Content,
			Metadata:   h.Metadata,
			Similarity: n.Normalize(h.Distance),
		})
	}
	return out
}
