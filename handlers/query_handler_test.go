package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/rag-gatekeeper/middleware"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services"
	"github.com/upb/rag-gatekeeper/services/query"
	"go.uber.org/zap"
)

// MockQueryService is a mock implementation of QueryService
type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Ask(ctx context.Context, req query.Request) (*query.Result, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*query.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

var member = models.UserContext{
	Username:       "alice",
	Department:     "Engineering",
	Role:           "member",
	RoleLevel:      2,
	ClearanceLevel: 1,
	Active:         true,
}

func newQueryRequest(body string, user *models.UserContext) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	ctx := middleware.WithRequestID(req.Context(), "chi-req-1")
	if user != nil {
		ctx = middleware.WithUser(ctx, *user)
	}
	return req.WithContext(ctx)
}

func TestHandleQuery_Answer(t *testing.T) {
	svc := new(MockQueryService)
	handler := NewQueryHandler(svc, zap.NewNop())

	svc.On("Ask", mock.Anything, query.Request{RequestID: "client-7", Query: "how to deploy?", User: member}).
		Return(&query.Result{
			RequestID: "client-7",
			Mode:      models.ModeSoftAnswer,
			Answer:    "Run make deploy.",
			Sources:   []models.SourceRef{{Source: "runbook.md", Similarity: 0.47}},
		}, nil)

	w := httptest.NewRecorder()
	handler.HandleQuery(w, newQueryRequest(`{"request_id":"client-7","query":"how to deploy?"}`, &member))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(AuditStatusHeader))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "soft_answer", body["type"])
	assert.Equal(t, "client-7", body["request_id"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Run make deploy.", data["answer"])
	sources := data["sources"].([]interface{})
	require.Len(t, sources, 1)
	assert.Equal(t, "runbook.md", sources[0].(map[string]interface{})["source"])
	svc.AssertExpectations(t)
}

func TestHandleQuery_NoInfo(t *testing.T) {
	svc := new(MockQueryService)
	handler := NewQueryHandler(svc, zap.NewNop())

	svc.On("Ask", mock.Anything, mock.MatchedBy(func(r query.Request) bool { return r.RequestID == "chi-req-1" })).
		Return(&query.Result{RequestID: "chi-req-1", Mode: models.ModeNoInfo}, nil)

	w := httptest.NewRecorder()
	handler.HandleQuery(w, newQueryRequest(`{"query":"what is the CEO salary?"}`, &member))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"no_info","request_id":"chi-req-1","reason":"insufficient_relevance"}`, w.Body.String())
}

func TestHandleQuery_AuditFailureHeader(t *testing.T) {
	svc := new(MockQueryService)
	handler := NewQueryHandler(svc, zap.NewNop())

	svc.On("Ask", mock.Anything, mock.Anything).Return(&query.Result{
		RequestID: "r",
		Mode:      models.ModeAnswer,
		Answer:    "yes",
		Sources:   []models.SourceRef{},
		AuditErr:  errors.New("disk full"),
	}, nil)

	w := httptest.NewRecorder()
	handler.HandleQuery(w, newQueryRequest(`{"query":"q"}`, &member))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", w.Header().Get(AuditStatusHeader))
}

func TestHandleQuery_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		user       *models.UserContext
		serviceErr error
		wantStatus int
	}{
		{name: "unauthenticated", body: `{"query":"q"}`, user: nil, wantStatus: http.StatusUnauthorized},
		{name: "malformed body", body: `{"query":`, user: &member, wantStatus: http.StatusBadRequest},
		{name: "missing query", body: `{}`, user: &member, wantStatus: http.StatusBadRequest},
		{name: "query too long", body: `{"query":"` + strings.Repeat("a", 4001) + `"}`, user: &member, wantStatus: http.StatusBadRequest},
		{name: "blank query", body: `{"query":"  "}`, user: &member, serviceErr: services.ErrEmptyQuery, wantStatus: http.StatusBadRequest},
		{name: "embedding failure", body: `{"query":"q"}`, user: &member, serviceErr: services.Wrap(services.ErrEmbeddingFailed, errors.New("x")), wantStatus: http.StatusBadGateway},
		{name: "index failure", body: `{"query":"q"}`, user: &member, serviceErr: services.Wrap(services.ErrIndexUnavailable, errors.New("x")), wantStatus: http.StatusBadGateway},
		{name: "internal failure", body: `{"query":"q"}`, user: &member, serviceErr: errors.New("nil pointer"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockQueryService)
			if tt.serviceErr != nil {
				svc.On("Ask", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}
			handler := NewQueryHandler(svc, zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleQuery(w, newQueryRequest(tt.body, tt.user))

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEqual(t, "no_info", body["type"])
			assert.NotEmpty(t, body["error"])
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleMe(t *testing.T) {
	handler := NewAuthHandler(zap.NewNop())

	t.Run("returns the user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req = req.WithContext(middleware.WithUser(req.Context(), member))
		w := httptest.NewRecorder()

		handler.HandleMe(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var got models.UserContext
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, member, got)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleMe(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
