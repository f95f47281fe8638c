package handlers

import (
	"net/http"

	"github.com/upb/rag-gatekeeper/middleware"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// AuthHandler exposes the authenticated identity
type AuthHandler struct {
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(logger *zap.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, user); err != nil {
		h.logger.Error("failed to write user response", zap.Error(err))
	}
}
