// Package memory provides an in-process vector index for development and tests.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/upb/rag-gatekeeper/internal/policy"
	"github.com/upb/rag-gatekeeper/internal/rag"
	"github.com/upb/rag-gatekeeper/internal/similarity"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// Chunk is one indexed piece of a document
type Chunk struct {
	Content   string                  `json:"content" validate:"required"`
	Metadata  models.DocumentMetadata `json:"metadata"`
	Embedding []float32               `json:"embedding" validate:"required,min=1"`
}

// Index is a brute-force rag.Index. The access predicate is evaluated
// before distances are computed.
type Index struct {
	mu     sync.RWMutex
	chunks []Chunk
	metric similarity.Metric
	logger *zap.Logger
}

// NewIndex creates an empty index ranking by metric
func NewIndex(metric similarity.Metric, logger *zap.Logger) (*Index, error) {
	if _, err := similarity.For(metric); err != nil {
		return nil, err
	}
	return &Index{metric: metric, logger: logger}, nil
}

// Add appends chunks to the index
func (i *Index) Add(chunks ...Chunk) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.chunks = append(i.chunks, chunks...)
}

// Len returns the number of indexed chunks
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunks)
}

// LoadFile reads a JSON Lines file of chunks into the index.
// Blank lines are skipped; any invalid line aborts the load.
func (i *Index) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var loaded []Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return 0, fmt.Errorf("seed file line %d: %w", line, err)
		}
		if err := utils.ValidateStruct(c); err != nil {
			return 0, fmt.Errorf("seed file line %d: %w", line, err)
		}
		loaded = append(loaded, c)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	i.Add(loaded...)
	i.logger.Info("memory index seeded", zap.String("path", path), zap.Int("chunks", len(loaded)))
	return len(loaded), nil
}

// Metric reports the distance function used for ranking
func (i *Index) Metric() similarity.Metric {
	return i.metric
}

// Query returns at most k chunks visible under filter, nearest first
func (i *Index) Query(ctx context.Context, embedding []float32, k int, filter policy.Predicate) ([]rag.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}
	if k <= 0 {
		return []rag.Hit{}, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	hits := make([]rag.Hit, 0, len(i.chunks))
	for _, c := range i.chunks {
		if !filter.Match(c.Metadata) {
			continue
		}
		hits = append(hits, rag.Hit{
			Content:  c.Content,
			Metadata: c.Metadata,
			Distance: distance(i.metric, embedding, c.Embedding),
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		da, db := hits[a].Distance, hits[b].Distance
		if math.IsNaN(db) {
			return !math.IsNaN(da)
		}
		return da < db
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	i.logger.Debug("memory index queried", zap.Int("k", k), zap.Int("hits", len(hits)))
	return hits, nil
}

// Documents groups the indexed chunks by source
func (i *Index) Documents(ctx context.Context) ([]models.DocumentSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrIndexUnavailable, err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	bySource := make(map[string]*models.DocumentSummary)
	for _, c := range i.chunks {
		doc, ok := bySource[c.Metadata.Source]
		if !ok {
			doc = &models.DocumentSummary{Source: c.Metadata.Source}
			bySource[c.Metadata.Source] = doc
		}
		doc.Chunks++
		doc.OwnerDepartment = c.Metadata.OwnerDepartment
		doc.MinRoleLevel = c.Metadata.MinRoleLevel
		doc.MinClearanceLevel = c.Metadata.MinClearanceLevel
	}

	docs := make([]models.DocumentSummary, 0, len(bySource))
	for _, doc := range bySource {
		docs = append(docs, *doc)
	}
	sort.Slice(docs, func(a, b int) bool { return docs[a].Source < docs[b].Source })
	return docs, nil
}

// Ping always succeeds
func (i *Index) Ping(ctx context.Context) error {
	return nil
}

// Close releases the indexed chunks
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.chunks = nil
	return nil
}

// distance computes the metric between a and b. Vectors of different or zero
// length, or with zero norm under cosine, yield NaN.
func distance(metric similarity.Metric, a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}

	var dot, normA, normB, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
		sq += (x - y) * (x - y)
	}

	switch metric {
	case similarity.L2:
		return math.Sqrt(sq)
	case similarity.InnerProduct:
		return -dot
	default:
		if normA == 0 || normB == 0 {
			return math.NaN()
		}
		return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	}
}
