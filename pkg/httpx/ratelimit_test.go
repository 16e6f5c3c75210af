package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/vellum/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
}

func post(path, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remote
	return req
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers CF-Connecting-IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("CF-Connecting-IP", "198.51.100.7")
		require.Equal(t, "198.51.100.7", httpx.IPKeyExtractor(req))
	})

	t.Run("uses first X-Forwarded-For entry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestIPAndPathKeyExtractor(t *testing.T) {
	req := post("/api/session", "192.168.1.1:12345")
	require.Equal(t, "ip:192.168.1.1:path:/api/session", httpx.IPAndPathKeyExtractor(req))
}

func TestRateLimiter_CapacityThenRefill(t *testing.T) {
	// Capacity C at time zero, then exactly one more token per 1/R seconds.
	cases := []struct {
		name   string
		config httpx.RateLimitConfig
	}{
		{"R=1", httpx.RateLimitConfig{Capacity: 3, RefillPerSecond: 1}},
		{"R=2", httpx.RateLimitConfig{Capacity: 5, RefillPerSecond: 2}},
		{"defaults", httpx.SessionLimit},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := newClock()
			rl := httpx.NewRateLimiter(tc.config, clk.Now)

			for i := range tc.config.Capacity {
				ok, _ := rl.Take("k")
				require.True(t, ok, "request %d should pass", i+1)
			}

			ok, wait := rl.Take("k")
			require.False(t, ok)
			require.Positive(t, wait)

			clk.Advance(time.Duration(float64(time.Second) / tc.config.RefillPerSecond))

			ok, _ = rl.Take("k")
			require.True(t, ok, "one token should have refilled")
			ok, _ = rl.Take("k")
			require.False(t, ok, "only one token should have refilled")
		})
	}
}

func TestRateLimiter_NeverExceedsCapacity(t *testing.T) {
	clk := newClock()
	rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 2, RefillPerSecond: 1}, clk.Now)

	clk.Advance(time.Hour)
	for range 2 {
		ok, _ := rl.Take("k")
		require.True(t, ok)
	}
	ok, _ := rl.Take("k")
	require.False(t, ok)
}

func TestRateLimiter_WaitHint(t *testing.T) {
	clk := newClock()
	rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 1, RefillPerSecond: 0.2}, clk.Now)

	ok, _ := rl.Take("k")
	require.True(t, ok)

	ok, wait := rl.Take("k")
	require.False(t, ok)
	require.InDelta(t, 5*time.Second, wait, float64(time.Millisecond))

	clk.Advance(2 * time.Second)
	ok, wait = rl.Take("k")
	require.False(t, ok)
	require.InDelta(t, 3*time.Second, wait, float64(time.Millisecond))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks state-changing requests over limit", func(t *testing.T) {
		clk := newClock()
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 2, RefillPerSecond: 0.2}, clk.Now)
		h := httpx.RateLimitByIPAndPath(rl)(okHandler())

		for i := range 2 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, post("/api/session", "192.168.1.1:12345"))
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/session", "192.168.1.1:12345"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "5", rec.Header().Get("Retry-After"))
		require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "rate_limited", body["error"])
		require.EqualValues(t, 5, body["retryAfterSeconds"])
	})

	t.Run("paths and clients are tracked separately", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 1, RefillPerSecond: 0.01}, newClock().Now)
		h := httpx.RateLimitByIPAndPath(rl)(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/session", "192.168.1.1:1"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/session", "192.168.1.1:1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/session/refresh", "192.168.1.1:1"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/session", "192.168.1.2:1"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("safe methods are not counted", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 1, RefillPerSecond: 0.01}, newClock().Now)
		h := httpx.RateLimitByIPAndPath(rl)(okHandler())

		for range 5 {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/me", "192.0.2.1:1"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 1, RefillPerSecond: 0.01}, newClock().Now)
		h := httpx.RateLimitMiddleware(rl, func(r *http.Request) string { return "" })(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, post("/", "192.0.2.1:1"))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestParseRateLimitFromEnv(t *testing.T) {
	t.Setenv("RATELIMIT_TEST_CAPACITY", "4")
	t.Setenv("RATELIMIT_TEST_REFILL_PER_SEC", "0.5")

	cfg := httpx.ParseRateLimitFromEnv("TEST", httpx.SessionLimit)
	require.Equal(t, 4, cfg.Capacity)
	require.InDelta(t, 0.5, cfg.RefillPerSecond, 1e-9)

	t.Setenv("RATELIMIT_TEST_CAPACITY", "-1")
	t.Setenv("RATELIMIT_TEST_REFILL_PER_SEC", "nope")
	cfg = httpx.ParseRateLimitFromEnv("TEST", httpx.SessionLimit)
	require.Equal(t, httpx.SessionLimit, cfg)
}

func BenchmarkRateLimiter_Take(b *testing.B) {
	rl := httpx.NewRateLimiter(httpx.RateLimitConfig{Capacity: 1 << 30, RefillPerSecond: 1e9}, nil)

	for b.Loop() {
		rl.Take("ip:192.0.2.1:path:/api/session")
	}
}
