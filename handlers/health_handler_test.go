package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/rag-gatekeeper/internal/gate"
	"github.com/upb/rag-gatekeeper/services/audit"
	"go.uber.org/zap"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubMirror struct{ stats audit.Stats }

func (m stubMirror) GetStats() audit.Stats { return m.stats }

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response["data"].(map[string]interface{})
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, StatusInfo{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "healthy", data["status"])
	assert.NotEmpty(t, data["timestamp"])
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database and index are available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		handler := NewHealthHandler(db, stubPinger{}, nil, StatusInfo{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "healthy", data["status"])
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "healthy", checks["index"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(db, stubPinger{}, nil, StatusInfo{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "unhealthy", data["status"])
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(db, nil, nil, StatusInfo{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when index is unreachable", func(t *testing.T) {
		handler := NewHealthHandler(nil, stubPinger{err: errors.New("connection refused")}, nil, StatusInfo{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		checks := decodeData(t, w)["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "unhealthy", checks["index"])
	})
}

func TestHandleStatus(t *testing.T) {
	info := StatusInfo{
		Service:      "rag-gatekeeper",
		AuthMode:     "username",
		IndexBackend: "memory",
		Metric:       "cosine",
		TopK:         7,
		Thresholds:   gate.DefaultThresholds(),
	}

	t.Run("without audit mirror", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, nil, info, zap.NewNop())
		w := httptest.NewRecorder()
		handler.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "rag-gatekeeper", data["service"])
		assert.Equal(t, float64(7), data["top_k"])
		thresholds := data["thresholds"].(map[string]interface{})
		assert.Equal(t, 0.5, thresholds["hard"])
		assert.Equal(t, float64(3), thresholds["min_strong"])
		assert.NotContains(t, data, "audit_mirror")
	})

	t.Run("with audit mirror", func(t *testing.T) {
		mirror := stubMirror{stats: audit.Stats{BufferSize: 100, PendingEvents: 4, WorkerCount: 2, Sinks: 1, Started: true}}
		handler := NewHealthHandler(nil, nil, mirror, info, zap.NewNop())
		w := httptest.NewRecorder()
		handler.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

		mirrorData := decodeData(t, w)["audit_mirror"].(map[string]interface{})
		assert.Equal(t, float64(4), mirrorData["pending_events"])
		assert.Equal(t, true, mirrorData["started"])
	})
}
