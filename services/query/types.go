package query

import (
	"context"
	"time"

	"github.com/upb/rag-gatekeeper/models"
)

// Request is one question asked by an authenticated user
type Request struct {
	RequestID string
	Query     string
	User      models.UserContext
}

// Result is the outcome of a query. Answer and Sources are empty for no_info.
// AuditErr is set when the primary audit write failed; the answer stands.
type Result struct {
	RequestID     string
	Mode          models.DecisionMode
	Answer        string
	Sources       []models.SourceRef
	MaxSimilarity *float64
	AuditErr      error
}

// AuditRecorder persists the single audit record of a query
type AuditRecorder interface {
	Record(ctx context.Context, event *models.AuditEvent) error
}

// Config holds pipeline tuning
type Config struct {
	TopK          int           // Candidates requested from the index
	MaxEvidence   int           // Documents passed to the generator
	MinSimilarity float64       // Evidence cutoff, falls back to the best MaxEvidence
	QueryTimeout  time.Duration // Deadline for the index query, 0 for none
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		TopK:          7,
		MaxEvidence:   3,
		MinSimilarity: 0,
		QueryTimeout:  10 * time.Second,
	}
}
