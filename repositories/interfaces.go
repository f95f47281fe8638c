package repositories

import (
	"context"
	"errors"

	"github.com/upb/rag-gatekeeper/models"
)

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = errors.New("record not found")

// UserRepository handles user lookups for authentication
type UserRepository interface {
	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuditFilter narrows an audit event listing
type AuditFilter struct {
	RequestID string
	Username  string
	Limit     int
	Offset    int
}

// AuditRepository handles the database mirror of the audit trail
type AuditRepository interface {
	// Insert inserts a new audit event
	Insert(ctx context.Context, event *models.AuditEvent) error

	// List retrieves audit events, newest first
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditEvent, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users       UserRepository
	AuditEvents AuditRepository
}
