package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/repositories"
	"go.uber.org/zap"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     Executor
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db Executor, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit event
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO query_audit_events (
			id, timestamp, request_id, username, department, role_level, clearance_level,
			query, decision_mode, max_similarity, llm_called, sources, error_message, latency_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	sources, err := json.Marshal(event.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode audit sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.RequestID,
		event.User.Username,
		event.User.Department,
		event.User.RoleLevel,
		event.User.ClearanceLevel,
		event.Query,
		nullString(event.Mode()),
		nullFloat(event.MaxSimilarity),
		event.LLMCalled,
		sources,
		nullString(event.Error),
		event.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	r.logger.Debug("audit event inserted",
		zap.String("id", event.ID.String()),
		zap.String("request_id", event.RequestID))
	return nil
}

// List retrieves audit events, newest first
func (r *AuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEvent, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.RequestID != "" {
		args = append(args, filter.RequestID)
		conditions = append(conditions, fmt.Sprintf("request_id = $%d", len(args)))
	}
	if filter.Username != "" {
		args = append(args, filter.Username)
		conditions = append(conditions, fmt.Sprintf("username = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, timestamp, request_id, username, department, role_level, clearance_level,
		       query, decision_mode, max_similarity, llm_called, sources, error_message, latency_ms
		FROM query_audit_events`)
	if len(conditions) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&sb, "\n\t\tORDER BY timestamp DESC\n\t\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}

func scanAuditEvent(rows *sql.Rows) (*models.AuditEvent, error) {
	var (
		event   models.AuditEvent
		mode    sql.NullString
		best    sql.NullFloat64
		sources []byte
		errMsg  sql.NullString
	)

	err := rows.Scan(
		&event.ID,
		&event.Timestamp,
		&event.RequestID,
		&event.User.Username,
		&event.User.Department,
		&event.User.RoleLevel,
		&event.User.ClearanceLevel,
		&event.Query,
		&mode,
		&best,
		&event.LLMCalled,
		&sources,
		&errMsg,
		&event.LatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	if mode.Valid {
		m := models.DecisionMode(mode.String)
		event.DecisionMode = &m
	}
	if best.Valid {
		v := best.Float64
		event.MaxSimilarity = &v
	}
	event.Error = errMsg.String

	event.Sources = []models.SourceRef{}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &event.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode audit sources: %w", err)
		}
	}

	return &event, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
