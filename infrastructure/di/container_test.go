package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synergy-backend/infrastructure/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.StoreBackend = config.StoreMemory
	cfg.LogLevel = "error"
	cfg.FlushInterval = 0
	return cfg
}

func TestInitializeContainer_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	require.NoError(t, cfg.Validate())

	container, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, container.Metrics)
	assert.Nil(t, container.Tracing)
	assert.Nil(t, container.Publisher)

	require.NoError(t, container.Start(ctx))
	assert.True(t, container.Connection.Health().Connected)

	decision, err := container.Graph.ProposeEdge(ctx, "alpha", "beta", 0.9)
	require.NoError(t, err)
	assert.True(t, decision.Admitted())
	assert.Equal(t, 1, container.Writer.Pending())

	require.NoError(t, container.Shutdown(ctx))
	assert.Equal(t, 0, container.Writer.Pending())
	assert.Greater(t, container.Connection.Health().TotalOperations, int64(0))
}

func TestInitializeContainer_HydratesOnStart(t *testing.T) {
	cfg := memoryConfig()
	cfg.HydrateOnStart = true

	container, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, container.Start(context.Background()))
	assert.Equal(t, 0, container.Graph.Stats().Edges)
}

func TestInitializeContainer_ExportsHealthGauges(t *testing.T) {
	container, err := InitializeContainer(context.Background(), memoryConfig())
	require.NoError(t, err)
	require.NoError(t, container.Start(context.Background()))

	rec := httptest.NewRecorder()
	container.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "synergy_store_connected 1"), body)
	assert.Contains(t, body, "synergy_store_consecutive_failures 0")
}

func TestInitializeContainer_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.EnableMetrics = false

	container, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, container.Metrics)

	rec := httptest.NewRecorder()
	container.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitializeContainer_SQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.StoreBackend = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "synergy.db")
	cfg.HydrateOnStart = true
	cfg.EnableMetrics = false
	require.NoError(t, cfg.Validate())

	first, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	_, err = first.Graph.ProposeEdge(ctx, "alpha", "beta", 0.9)
	require.NoError(t, err)
	_, err = first.Graph.ProposeEdge(ctx, "beta", "gamma", 0.85)
	require.NoError(t, err)
	require.NoError(t, first.Shutdown(ctx))

	second, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))
	defer second.Shutdown(ctx) //nolint:errcheck

	assert.Equal(t, 2, second.Graph.Stats().Edges)
	neighbors := second.Graph.Neighbors("alpha")
	require.Len(t, neighbors, 1)
	assert.Equal(t, "beta", neighbors[0].Target.String())
}
