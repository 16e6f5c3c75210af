package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/vellum/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Origins:             []string{"https://app.example.com"},
		ClientIDs:           []string{"client-1"},
		KeySetURL:           "http://127.0.0.1:1/certs",
		HMACSecret:          []byte("app-test-secret"),
		AccessTTL:           time.Hour,
		RefreshTTL:          24 * time.Hour,
		StoreDriver:         StoreDriverMemory,
		LogLevel:            "error",
		LogFormat:           "text",
		ShutdownGracePeriod: time.Second,
	}
}

func readiness(t *testing.T, app *Application) authsdk.HealthResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Origins = nil

	_, err := New(cfg)
	require.ErrorContains(t, err, "APP_ORIGINS")
}

func TestNew_MemoryStore(t *testing.T) {
	app, err := New(testConfig())
	require.NoError(t, err)

	body := readiness(t, app)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "pending", body.Checks.KeySet)
	require.Equal(t, BuildVersion, body.Version)

	require.NoError(t, app.Shutdown())
}

func TestNew_SQLiteStoreWithSecretFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.StoreDriver = StoreDriverSQLite
	cfg.DatabaseFile = filepath.Join(dir, "sessions.db")
	cfg.HMACSecret = nil
	cfg.HMACSecretFile = filepath.Join(dir, "hmac.secret")

	app, err := New(cfg)
	require.NoError(t, err)

	_, err = os.Stat(cfg.DatabaseFile)
	require.NoError(t, err)
	_, err = os.Stat(cfg.HMACSecretFile)
	require.NoError(t, err)

	require.Equal(t, "ok", readiness(t, app).Checks.Store)
	require.NoError(t, app.Shutdown())
}

func TestNew_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.StoreDriver = StoreDriverRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	app, err := New(cfg)
	require.NoError(t, err)

	require.Equal(t, "ok", readiness(t, app).Checks.Store)
	require.NoError(t, app.Shutdown())
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.StoreDriver = StoreDriverRedis
	cfg.RedisURL = "redis://" + addr + "/0"

	_, err := New(cfg)
	require.ErrorContains(t, err, "redis store")
}

func TestApplication_RejectsForeignOrigin(t *testing.T) {
	app, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown() })

	req := httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
