package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/SscSPs/procure_to_pay/internal/platform/lock"
	"github.com/SscSPs/procure_to_pay/internal/platform/notify"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                           "0",
		StorageDriver:                  config.StorageDriverMemory,
		JWTSecret:                      "test-secret-key-that-is-long-enough",
		RateLimit:                      "100-M",
		CORSAllowedOrigins:             []string{"http://localhost:3000"},
		ConflictOfInterestCheckEnabled: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApplication_MemoryWithoutBrokers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := newApplication(context.Background(), testConfig(), discardLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &lock.LocalLocker{}, app.deps.Locker)
	assert.IsType(t, notify.LogNotifier{}, app.deps.Notifier)
	assert.Nil(t, app.redisClient)
	require.NotNil(t, app.services.Ledger)

	router, err := newRouter(app)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/budgets", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewApplication_RedisLocksAndRateLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.RateLimit = "2-M"

	app, err := newApplication(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &lock.RedisLocker{}, app.deps.Locker)
	require.NotNil(t, app.redisClient)

	router, err := newRouter(app)
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewApplication_InvalidRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "not-a-url"

	_, err := newApplication(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid REDIS_URL")
}

func TestRouter_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := newApplication(context.Background(), testConfig(), discardLogger())
	require.NoError(t, err)
	defer app.Close()

	router, err := newRouter(app)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/budgets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/budgets", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
