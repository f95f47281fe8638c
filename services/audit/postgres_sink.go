package audit

import (
	"context"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/repositories"
)

// PostgresSink mirrors events into the query_audit_events table
type PostgresSink struct {
	repo repositories.AuditRepository
}

// NewPostgresSink creates a sink backed by the audit repository
func NewPostgresSink(repo repositories.AuditRepository) *PostgresSink {
	return &PostgresSink{repo: repo}
}

// Name identifies the sink in logs and metrics
func (s *PostgresSink) Name() string {
	return "postgres"
}

// Write inserts the event
func (s *PostgresSink) Write(ctx context.Context, event *models.AuditEvent) error {
	return s.repo.Insert(ctx, event)
}

// Close is a no-op; the connection pool is owned by the repository factory
func (s *PostgresSink) Close() error {
	return nil
}
