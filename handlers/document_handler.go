package handlers

import (
	"context"
	"net/http"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// DocumentLister lists the documents held by the vector index
type DocumentLister interface {
	Documents(ctx context.Context) ([]models.DocumentSummary, error)
}

// DocumentHandler serves the index catalogue to administrators
type DocumentHandler struct {
	index  DocumentLister
	logger *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(index DocumentLister, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		index:  index,
		logger: logger,
	}
}

// HandleListDocuments handles GET /api/v1/documents
func (h *DocumentHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.index.Documents(r.Context())
	if err != nil {
		HandleServiceError(w, services.Wrap(services.ErrIndexUnavailable, err), h.logger)
		return
	}

	if err := utils.WriteOK(w, docs); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
