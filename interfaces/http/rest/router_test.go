package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergy-backend/application/services"
	"synergy-backend/domain/config"
	"synergy-backend/infrastructure/persistence/batch"
	"synergy-backend/infrastructure/persistence/connection"
	"synergy-backend/infrastructure/persistence/memory"
	"synergy-backend/pkg/observability"
	"synergy-backend/pkg/retry"
)

type testServer struct {
	handler   http.Handler
	store     *memory.DocumentStore
	manager   *connection.Manager
	collector *observability.Collector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewDocumentStore()
	manager := connection.NewManager(store.Dialer(), connection.Config{
		StoreName:        "memory",
		Policy:           retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		OperationTimeout: time.Second,
		InitTimeout:      time.Second,
	}, nil, zap.NewNop())
	writer := batch.NewWriter(manager, batch.DefaultConfig(), nil, zap.NewNop())

	cfg := config.DefaultDomainConfig()
	cfg.MaxDomainConnections = 2
	graph, err := services.NewSynergyGraph(cfg, writer, manager, nil, zap.NewNop())
	require.NoError(t, err)

	collector := observability.NewCollector("test")
	router := NewRouter(graph, manager, collector, Options{EnableCORS: true}, zap.NewNop())

	return &testServer{handler: router.Setup(), store: store, manager: manager, collector: collector}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestRouter_ProposeEdgeFlow(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "A", "target": "B", "score": 0.8})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admitted", data(t, body)["outcome"])

	_, _ = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "A", "target": "C", "score": 0.9})

	rec, body = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "A", "target": "D", "score": 0.85})
	require.Equal(t, http.StatusOK, rec.Code)
	decision := data(t, body)
	assert.Equal(t, "admitted", decision["outcome"])
	evicted, ok := decision["evicted"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "B", evicted["target"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "A", "target": "E", "score": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", data(t, body)["outcome"])
	assert.Equal(t, "below_threshold", data(t, body)["reason"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/domains/A/neighbors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	neighbors := data(t, body)["neighbors"].([]interface{})
	require.Len(t, neighbors, 2)
	assert.Equal(t, "C", neighbors[0].(map[string]interface{})["target"])
	assert.Equal(t, "D", neighbors[1].(map[string]interface{})["target"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/domains", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"A", "B", "C", "D"}, data(t, body)["domains"])
}

func TestRouter_ProposeEdgeValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"score out of range", map[string]interface{}{"source": "A", "target": "B", "score": 1.5}, "INVALID_SCORE"},
		{"self loop", map[string]interface{}{"source": "A", "target": "A", "score": 0.9}, "SELF_LOOP"},
		{"missing score", map[string]interface{}{"source": "A", "target": "B"}, "VALIDATION_ERROR"},
		{"blank source", map[string]interface{}{"source": "  ", "target": "B", "score": 0.9}, "VALIDATION"},
		{"unknown field", map[string]interface{}{"source": "A", "target": "B", "score": 0.9, "weight": 1}, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/api/v1/edges", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errInfo := body["error"].(map[string]interface{})
			assert.Equal(t, tt.code, errInfo["code"])
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestRouter_RemoveEdgeAndDomain(t *testing.T) {
	s := newTestServer(t)

	_, _ = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "A", "target": "B", "score": 0.9})
	_, _ = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "B", "target": "A", "score": 0.9})
	_, _ = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "C", "target": "B", "score": 0.9})

	rec, _ := s.do(t, http.MethodDelete, "/api/v1/domains/C/edges/B", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Idempotent
	rec, _ = s.do(t, http.MethodDelete, "/api/v1/domains/C/edges/B", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body := s.do(t, http.MethodDelete, "/api/v1/domains/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, data(t, body)["edges_removed"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, data(t, body)["edges"])
}

func TestRouter_PersistAndHydrate(t *testing.T) {
	s := newTestServer(t)

	_, _ = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "A", "target": "B", "score": 0.9})
	_, _ = s.do(t, http.MethodPost, "/api/v1/edges", map[string]interface{}{"source": "B", "target": "C", "score": 0.8})

	rec, body := s.do(t, http.MethodPost, "/api/v1/persist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, data(t, body)["succeeded"])
	assert.Equal(t, 0.0, data(t, body)["pending"])
	assert.Equal(t, 2, s.store.Len())

	rec, body = s.do(t, http.MethodPost, "/api/v1/hydrate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// Everything stored is already in memory
	assert.Equal(t, 0.0, data(t, body)["loaded"])
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", data(t, body)["status"])

	rec, _ = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err := s.manager.Acquire(context.Background())
	require.NoError(t, err)

	rec, body = s.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conn := data(t, body)["connection"].(map[string]interface{})
	assert.Equal(t, true, conn["connected"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, _ = s.do(t, http.MethodGet, "/api/v1/domains/A/neighbors", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.collector.HTTPRequests.WithLabelValues("GET", "/api/v1/domains/{domainID}/neighbors", "200")))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
