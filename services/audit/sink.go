// Package audit writes one append-only record per query.
//
// The primary sink is written synchronously and its failures are reported to
// the caller. Mirror sinks receive the same record through a buffered worker
// pool and are best-effort.
package audit

import (
	"context"
	"errors"

	"github.com/upb/rag-gatekeeper/models"
)

// ErrWriteFailed is returned by Record when the primary sink rejects a record
var ErrWriteFailed = errors.New("audit write failed")

// Sink persists audit events
type Sink interface {
	Name() string
	Write(ctx context.Context, event *models.AuditEvent) error
	Close() error
}
