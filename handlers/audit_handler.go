package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/repositories"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// AuditReader lists mirrored audit events
type AuditReader interface {
	List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEvent, error)
}

// AuditHandler serves the audit trail to administrators
type AuditHandler struct {
	reader AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(reader AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// HandleListEvents handles GET /api/v1/audit/events
func (h *AuditHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.AuditFilter{
		RequestID: q.Get("request_id"),
		Username:  q.Get("username"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		_ = utils.WriteBadRequest(w, "limit must be an integer", nil)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		_ = utils.WriteBadRequest(w, "offset must be an integer", nil)
		return
	}

	events, err := h.reader.List(r.Context(), filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if events == nil {
		events = []*models.AuditEvent{}
	}

	if err := utils.WriteOK(w, events); err != nil {
		h.logger.Error("failed to write audit events", zap.Error(err))
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
