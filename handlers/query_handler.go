package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/upb/rag-gatekeeper/middleware"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services/query"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// AuditStatusHeader is set to "failed" when the audit record could not be written
const AuditStatusHeader = "X-Audit-Status"

// QueryService answers questions for an authenticated user
type QueryService interface {
	Ask(ctx context.Context, req query.Request) (*query.Result, error)
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,max=128"`
	Query     string `json:"query" validate:"required,max=4000"`
}

// NoInfoResponse is returned when the documents do not support an answer
type NoInfoResponse struct {
	Type      models.DecisionMode `json:"type"`
	RequestID string              `json:"request_id"`
	Reason    string              `json:"reason"`
}

// AnswerData carries a generated answer and its sources
type AnswerData struct {
	Answer  string             `json:"answer"`
	Sources []models.SourceRef `json:"sources"`
}

// AnswerResponse is returned for answer and soft_answer decisions
type AnswerResponse struct {
	Type      models.DecisionMode `json:"type"`
	RequestID string              `json:"request_id"`
	Data      AnswerData          `json:"data"`
}

// QueryHandler handles question answering requests
type QueryHandler struct {
	service QueryService
	logger  *zap.Logger
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(service QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleQuery handles POST /query
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.GetUserFromContext(ctx)
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("invalid query body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if req.RequestID == "" {
		req.RequestID = middleware.GetRequestIDFromContext(ctx)
	}

	result, err := h.service.Ask(ctx, query.Request{
		RequestID: req.RequestID,
		Query:     req.Query,
		User:      user,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if result.AuditErr != nil {
		w.Header().Set(AuditStatusHeader, "failed")
	}

	var body interface{}
	if result.Mode.AllowsAnswer() {
		body = AnswerResponse{
			Type:      result.Mode,
			RequestID: result.RequestID,
			Data: AnswerData{
				Answer:  result.Answer,
				Sources: result.Sources,
			},
		}
	} else {
		body = NoInfoResponse{
			Type:      models.ModeNoInfo,
			RequestID: result.RequestID,
			Reason:    models.NoInfoReason,
		}
	}

	if err := utils.WriteJSON(w, http.StatusOK, body); err != nil {
		h.logger.Error("failed to write query response", zap.Error(err))
	}
}
