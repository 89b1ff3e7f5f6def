package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/your-org/storefront/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppWithLogger(t, zaptest.NewLogger(t))
}

func newTestAppWithLogger(t *testing.T, log *zap.Logger) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Database.URI = ""
	cfg.Storage.SnapshotPath = filepath.Join(t.TempDir(), "mock-db.json")

	a := NewApp()
	a.config = cfg
	a.logger = log
	require.NoError(t, a.wire())
	t.Cleanup(func() {
		a.imageCache.StopCleanupWorker()
		a.cancel()
	})
	return a
}

func TestReadinessBeforeAndAfterResolve(t *testing.T) {
	a := newTestApp(t)
	h := a.server.Handler

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	a.resolveStore()

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsMockMode(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mock", body["mode"])
	assert.NotEmpty(t, body["reason"])
}

func TestAPIServesSeededCollections(t *testing.T) {
	a := newTestApp(t)
	a.resolveStore()

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 5, body["count"])

	rec = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images/placeholder_3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)
	a.resolveStore()

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `storefront_store_mode{mode="mock"} 1`))
}

func TestResolverLogsUnderConnectionName(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	a := newTestAppWithLogger(t, zap.New(core))
	a.resolveStore()

	entries := logs.FilterMessage("using mock document store").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "connection", entries[0].LoggerName)
}
