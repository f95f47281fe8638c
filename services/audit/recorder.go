package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/rag-gatekeeper/internal/observability"
	"github.com/upb/rag-gatekeeper/models"
	"go.uber.org/zap"
)

// Recorder writes the audit record of a query
type Recorder struct {
	primary Sink
	mirrors *MirrorService
	metrics observability.Metrics
	logger  *zap.Logger
}

// NewRecorder creates a recorder. mirrors may be nil.
func NewRecorder(primary Sink, mirrors *MirrorService, metrics observability.Metrics, logger *zap.Logger) *Recorder {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Recorder{
		primary: primary,
		mirrors: mirrors,
		metrics: metrics,
		logger:  logger,
	}
}

// Record writes event to the primary sink and queues it for the mirrors.
// A primary failure is logged and returned wrapped in ErrWriteFailed.
func (r *Recorder) Record(ctx context.Context, event *models.AuditEvent) error {
	if r.mirrors != nil {
		if err := r.mirrors.Enqueue(event); err != nil {
			r.logger.Warn("audit mirror enqueue failed",
				zap.String("request_id", event.RequestID),
				zap.Error(err))
		}
	}

	if err := r.primary.Write(ctx, event); err != nil {
		r.metrics.RecordAuditFailure(ctx, r.primary.Name())
		r.logger.Error("audit write failed",
			zap.String("sink", r.primary.Name()),
			zap.String("request_id", event.RequestID),
			zap.String("decision_mode", event.Mode()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Close stops the mirrors and closes the primary sink
func (r *Recorder) Close(ctx context.Context) error {
	if r.mirrors != nil {
		timeout := DefaultConfig().WriteTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := r.mirrors.Stop(timeout); err != nil {
			r.logger.Warn("audit mirrors did not stop cleanly", zap.Error(err))
		}
	}
	return r.primary.Close()
}
