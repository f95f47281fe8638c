package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditUser is the snapshot of the caller stored with every audit record
type AuditUser struct {
	Username       string `json:"username" db:"username"`
	Department     string `json:"department" db:"department"`
	RoleLevel      int    `json:"role_level" db:"role_level"`
	ClearanceLevel int    `json:"clearance_level" db:"clearance_level"`
}

// AuditEvent is one append-only record of a query decision.
// DecisionMode is nil when the query failed before a decision was made.
type AuditEvent struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Timestamp     time.Time     `json:"timestamp" db:"timestamp"`
	RequestID     string        `json:"request_id" db:"request_id"`
	User          AuditUser     `json:"user" db:"-"`
	Query         string        `json:"query" db:"query"`
	DecisionMode  *DecisionMode `json:"decision_mode" db:"decision_mode"`
	MaxSimilarity *float64      `json:"max_similarity" db:"max_similarity"`
	LLMCalled     bool          `json:"llm_called" db:"llm_called"`
	Sources       []SourceRef   `json:"sources" db:"sources"`
	Error         string        `json:"error,omitempty" db:"error_message"`
	LatencyMs     int64         `json:"latency_ms" db:"latency_ms"`
}

// TableName returns the table name for the AuditEvent model
func (AuditEvent) TableName() string {
	return "query_audit_events"
}

// NewAuditEvent creates a new AuditEvent for the given request
func NewAuditEvent(requestID string, user UserContext, query string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		User: AuditUser{
			Username:       user.Username,
			Department:     user.Department,
			RoleLevel:      user.RoleLevel,
			ClearanceLevel: user.ClearanceLevel,
		},
		Query:   query,
		Sources: []SourceRef{},
	}
}

// WithDecision sets the decision mode and the maximum similarity seen
func (a *AuditEvent) WithDecision(mode DecisionMode, maxSimilarity *float64) *AuditEvent {
	a.DecisionMode = &mode
	a.MaxSimilarity = maxSimilarity
	return a
}

// WithSources sets the evidence sources
func (a *AuditEvent) WithSources(sources []SourceRef) *AuditEvent {
	if sources == nil {
		sources = []SourceRef{}
	}
	a.Sources = sources
	return a
}

// WithLLMCalled marks whether the generator was invoked
func (a *AuditEvent) WithLLMCalled(called bool) *AuditEvent {
	a.LLMCalled = called
	return a
}

// WithError sets error information
func (a *AuditEvent) WithError(err error) *AuditEvent {
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// WithLatency sets the end-to-end latency
func (a *AuditEvent) WithLatency(d time.Duration) *AuditEvent {
	a.LatencyMs = d.Milliseconds()
	return a
}

// Mode returns the decision mode as a string, or empty when undecided
func (a *AuditEvent) Mode() string {
	if a.DecisionMode == nil {
		return ""
	}
	return string(*a.DecisionMode)
}
