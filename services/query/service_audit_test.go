package query

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/rag-gatekeeper/internal/gate"
	"github.com/upb/rag-gatekeeper/internal/rag"
	"github.com/upb/rag-gatekeeper/internal/similarity"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services/audit"
	"go.uber.org/zap"
)

// Runs the pipeline against a real JSON Lines sink so the written record
// is checked, not just the event handed to the recorder.
func TestService_Ask_EvidenceFallbackWritesAuditRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := audit.NewFileSink(audit.FileConfig{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)
	recorder := audit.NewRecorder(sink, nil, nil, zap.NewNop())

	embedder := new(MockEmbedder)
	index := new(MockIndex)
	generator := new(MockGenerator)
	index.On("Metric").Return(similarity.Cosine)

	cfg := DefaultConfig()
	cfg.MinSimilarity = 0.8

	svc, err := NewService(embedder, index, generator, recorder,
		gate.NewEngine(gate.DefaultThresholds()), nil, cfg, zap.NewNop())
	require.NoError(t, err)

	embedder.On("Embed", mock.Anything, "where is the runbook?").Return(queryVector, nil)
	index.On("Query", mock.Anything, queryVector, 7, filterFor(engineer)).
		Return([]rag.Hit{hit("a.md", 0.6), hit("b.md", math.NaN())}, nil)
	generator.On("Generate", mock.Anything, "where is the runbook?",
		mock.MatchedBy(func(ev []models.RetrievedCandidate) bool {
			return len(ev) == 1 && ev[0].Metadata.Source == "a.md"
		}), false).Return("See a.md.", nil)

	res, err := svc.Ask(context.Background(), Request{RequestID: "req-nan", Query: "where is the runbook?", User: engineer})
	require.NoError(t, err)
	assert.NoError(t, res.AuditErr)
	assert.Equal(t, models.ModeAnswer, res.Mode)
	assert.Equal(t, []models.SourceRef{{Source: "a.md", Similarity: 0.7}}, res.Sources)

	// The response body must encode
	_, err = json.Marshal(res.Sources)
	assert.NoError(t, err)

	require.NoError(t, recorder.Close(context.Background()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 1)

	var record models.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "req-nan", record.RequestID)
	assert.True(t, record.LLMCalled)
	assert.Equal(t, []models.SourceRef{{Source: "a.md", Similarity: 0.7}}, record.Sources)

	embedder.AssertExpectations(t)
	index.AssertExpectations(t)
	generator.AssertExpectations(t)
}
