package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/rag-gatekeeper/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

const auditSchema = `
	CREATE TABLE IF NOT EXISTS query_audit_events (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		request_id VARCHAR(255) NOT NULL,
		username VARCHAR(255) NOT NULL,
		department VARCHAR(255) NOT NULL,
		role_level INTEGER NOT NULL,
		clearance_level INTEGER NOT NULL,
		query TEXT NOT NULL,
		decision_mode VARCHAR(20),
		max_similarity DOUBLE PRECISION,
		llm_called BOOLEAN NOT NULL,
		sources JSONB NOT NULL DEFAULT '[]',
		error_message TEXT,
		latency_ms BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_audit_events_request_id ON query_audit_events(request_id);
	CREATE INDEX IF NOT EXISTS idx_query_audit_events_username ON query_audit_events(username);
	CREATE INDEX IF NOT EXISTS idx_query_audit_events_timestamp ON query_audit_events(timestamp);
`

// InitSchema initializes the database schema.
// dimensions fixes the width of the embedding column.
func (db *DB) InitSchema(ctx context.Context, dimensions int) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		-- Users table
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			department VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL,
			role_level INTEGER NOT NULL DEFAULT 0,
			clearance_level INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Document chunks with access metadata
		CREATE TABLE IF NOT EXISTS document_chunks (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			source VARCHAR(1024) NOT NULL,
			owner_department VARCHAR(255) NOT NULL,
			min_role_level INTEGER NOT NULL DEFAULT 0,
			min_clearance_level INTEGER NOT NULL DEFAULT 0,
			allowed_roles TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_document_chunks_owner_department ON document_chunks(owner_department);
		CREATE INDEX IF NOT EXISTS idx_document_chunks_levels ON document_chunks(min_role_level, min_clearance_level);
		%s
	`, dimensions, auditSchema)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully", zap.Int("embedding_dimensions", dimensions))
	return nil
}

// InitAuditSchema initializes the audit database schema (query_audit_events only).
// Use for the separate audit database when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	db.logger.Info("audit schema initialized successfully")
	return nil
}

// Executor is an interface that can execute queries
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Conn is an Executor that can also be pinged
type Conn interface {
	Executor
	PingContext(ctx context.Context) error
}
