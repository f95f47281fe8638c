package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/upb/rag-gatekeeper/internal/gate"
	"github.com/upb/rag-gatekeeper/services/audit"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger is anything that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// MirrorStats reports the audit mirror queue
type MirrorStats interface {
	GetStats() audit.Stats
}

// StatusInfo describes the running configuration
type StatusInfo struct {
	Service         string          `json:"service"`
	Environment     string          `json:"environment"`
	AuthMode        string          `json:"auth_mode"`
	IndexBackend    string          `json:"index_backend"`
	Metric          string          `json:"metric"`
	TopK            int             `json:"top_k"`
	Thresholds      gate.Thresholds `json:"thresholds"`
	EmbeddingModel  string          `json:"embedding_model"`
	GenerationModel string          `json:"generation_model"`
}

// StatusResponse is the body of GET /api/v1/status
type StatusResponse struct {
	StatusInfo
	AuditMirror *audit.Stats `json:"audit_mirror,omitempty"`
	Uptime      string       `json:"uptime"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db      *sql.DB
	index   Pinger
	mirrors MirrorStats
	info    StatusInfo
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db, index and mirrors may be nil.
func NewHealthHandler(db *sql.DB, index Pinger, mirrors MirrorStats, info StatusInfo, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		index:   index,
		mirrors: mirrors,
		info:    info,
		started: time.Now(),
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that the database and the vector index are available
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.index != nil {
		if err := h.index.Ping(ctx); err != nil {
			h.logger.Warn("vector index health check failed", zap.Error(err))
			checks["index"] = "unhealthy"
			allHealthy = false
		} else {
			checks["index"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		StatusInfo: h.info,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
	}
	if h.mirrors != nil {
		stats := h.mirrors.GetStats()
		response.AuditMirror = &stats
	}

	_ = utils.WriteOK(w, response)
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil // No database configured
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return err
	}

	return nil
}
