package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/upb/rag-gatekeeper/internal/policy"
	"github.com/upb/rag-gatekeeper/internal/rag"
	"github.com/upb/rag-gatekeeper/internal/similarity"
	"github.com/upb/rag-gatekeeper/models"
	"go.uber.org/zap"
)

// distanceOperators maps each metric to its pgvector operator
var distanceOperators = map[similarity.Metric]string{
	similarity.Cosine:       "<=>",
	similarity.L2:           "<->",
	similarity.InnerProduct: "<#>",
}

// ChunkIndex is a rag.Index over the document_chunks table.
// The access predicate is rendered into the WHERE clause so rows are filtered
// before they are ranked.
type ChunkIndex struct {
	db         Conn
	metric     similarity.Metric
	operator   string
	dimensions int
	logger     *zap.Logger
}

// NewChunkIndex creates a pgvector backed index
func NewChunkIndex(db Conn, metric similarity.Metric, dimensions int, logger *zap.Logger) (*ChunkIndex, error) {
	op, ok := distanceOperators[metric]
	if !ok {
		return nil, fmt.Errorf("pgvector does not support metric %q", metric)
	}
	return &ChunkIndex{
		db:         db,
		metric:     metric,
		operator:   op,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Metric reports the distance function used for ranking
func (i *ChunkIndex) Metric() similarity.Metric {
	return i.metric
}

// Query returns at most k chunks visible under filter, nearest first
func (i *ChunkIndex) Query(ctx context.Context, embedding []float32, k int, filter policy.Predicate) ([]rag.Hit, error) {
	if len(embedding) != i.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d", len(embedding), i.dimensions)
	}
	if k <= 0 {
		return []rag.Hit{}, nil
	}

	where, filterArgs, err := filter.ToSQL("c", 2)
	if err != nil {
		return nil, fmt.Errorf("failed to render access filter: %w", err)
	}

	args := make([]interface{}, 0, len(filterArgs)+2)
	args = append(args, pgvector.NewVector(embedding))
	args = append(args, filterArgs...)
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT c.content, c.source, c.owner_department, c.min_role_level, c.min_clearance_level,
		       c.allowed_roles, c.embedding %s $1 AS distance
		FROM document_chunks c
		WHERE %s
		ORDER BY distance
		LIMIT $%d`, i.operator, where, len(args))

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]rag.Hit, 0, k)
	for rows.Next() {
		var (
			hit      rag.Hit
			roles    []string
			distance sql.NullFloat64
		)
		if err := rows.Scan(
			&hit.Content,
			&hit.Metadata.Source,
			&hit.Metadata.OwnerDepartment,
			&hit.Metadata.MinRoleLevel,
			&hit.Metadata.MinClearanceLevel,
			pq.Array(&roles),
			&distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		hit.Metadata.AllowedRoles = roles
		hit.Distance = math.NaN()
		if distance.Valid {
			hit.Distance = distance.Float64
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}

	i.logger.Debug("chunk index queried",
		zap.String("metric", string(i.metric)),
		zap.Int("k", k),
		zap.Int("hits", len(hits)))
	return hits, nil
}

// Documents groups document_chunks by source. Chunks of one document share
// their access metadata, so any row's values stand for the document.
func (i *ChunkIndex) Documents(ctx context.Context) ([]models.DocumentSummary, error) {
	query := `
		SELECT source, COUNT(*), MAX(owner_department), MAX(min_role_level), MAX(min_clearance_level)
		FROM document_chunks
		GROUP BY source
		ORDER BY source`

	rows, err := i.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	docs := []models.DocumentSummary{}
	for rows.Next() {
		var doc models.DocumentSummary
		if err := rows.Scan(
			&doc.Source,
			&doc.Chunks,
			&doc.OwnerDepartment,
			&doc.MinRoleLevel,
			&doc.MinClearanceLevel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}

	i.logger.Debug("chunk index documents listed", zap.Int("documents", len(docs)))
	return docs, nil
}

// Ping checks the database behind the index
func (i *ChunkIndex) Ping(ctx context.Context) error {
	if err := i.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}
	return nil
}

// Close is a no-op; the connection pool is owned by the repository factory
func (i *ChunkIndex) Close() error {
	return nil
}
