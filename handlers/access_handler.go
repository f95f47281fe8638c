package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/rag-gatekeeper/internal/policy"
	"github.com/upb/rag-gatekeeper/middleware"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// AccessCheckRequest pairs a user with a document's metadata
type AccessCheckRequest struct {
	User     models.UserContext      `json:"user"`
	Document models.DocumentMetadata `json:"document"`
}

// AccessHandler compares the document-level rule with the retrieval filter
type AccessHandler struct {
	logger *zap.Logger
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(logger *zap.Logger) *AccessHandler {
	return &AccessHandler{logger: logger}
}

// HandleCheck handles POST /api/v1/access/check
func (h *AccessHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req AccessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	verdict := policy.Check(req.User, req.Document)
	if verdict.Diverges {
		h.logger.Info("access definitions diverge",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("username", req.User.Username),
			zap.String("source", req.Document.Source),
			zap.Bool("authorized", verdict.Authorized),
			zap.Bool("visible", verdict.Visible))
	}

	if err := utils.WriteJSON(w, http.StatusOK, verdict); err != nil {
		h.logger.Error("failed to write access check response", zap.Error(err))
	}
}
