package audit

import (
	"context"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/repositories"
	"github.com/upb/rag-gatekeeper/services"
)

const maxListLimit = 500

// Reader lists events from the database mirror
type Reader struct {
	repo repositories.AuditRepository
}

// NewReader creates a reader. repo is nil when the mirror is disabled.
func NewReader(repo repositories.AuditRepository) *Reader {
	return &Reader{repo: repo}
}

// Enabled reports whether the database mirror is configured
func (r *Reader) Enabled() bool {
	return r != nil && r.repo != nil
}

// List returns mirrored events, newest first
func (r *Reader) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEvent, error) {
	if !r.Enabled() {
		return nil, services.ErrAuditMirrorOff
	}
	if filter.Limit < 0 || filter.Limit > maxListLimit || filter.Offset < 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid pagination", nil).
			WithDetail("max_limit", maxListLimit)
	}

	events, err := r.repo.List(ctx, filter)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return events, nil
}
