package httpx

import (
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/vellum/pkg/slogx"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimitConfig describes a token bucket.
type RateLimitConfig struct {
	// Capacity is the bucket size, i.e. the largest burst admitted after idle.
	Capacity int
	// RefillPerSecond is the continuous refill rate in tokens per second.
	RefillPerSecond float64
}

// SessionLimit guards the session endpoints: ten requests in a burst, then
// one every five seconds per client and path.
// Override with: RATELIMIT_SESSION_CAPACITY, RATELIMIT_SESSION_REFILL_PER_SEC
var SessionLimit = RateLimitConfig{
	Capacity:        10,
	RefillPerSecond: 0.2,
}

// ParseRateLimitFromEnv reads overrides named RATELIMIT_{prefix}_CAPACITY and
// RATELIMIT_{prefix}_REFILL_PER_SEC. Missing or invalid values keep the
// default.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil && capacity > 0 {
			config.Capacity = capacity
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_REFILL_PER_SEC"); val != "" {
		if refill, err := strconv.ParseFloat(val, 64); err == nil && refill > 0 {
			config.RefillPerSecond = refill
		}
	}

	return config
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request. Proxy
// headers are trusted as-is; the service is expected to sit behind an edge
// that overwrites them.
func IPKeyExtractor(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For is a comma-separated list, client first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// IPAndPathKeyExtractor keys buckets by client and route, "ip:<ip>:path:<path>".
func IPAndPathKeyExtractor(r *http.Request) string {
	ip := IPKeyExtractor(r)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip + ":path:" + r.URL.Path
}

// RateLimiter keeps one token bucket per key. Buckets live in a go-cache
// map and are dropped once they have been idle long enough to be full
// again, so eviction never tightens a limit.
type RateLimiter struct {
	config  RateLimitConfig
	limit   rate.Limit
	buckets *cache.Cache
	now     func() time.Time
}

// NewRateLimiter builds a limiter for config. A nil clock means time.Now.
func NewRateLimiter(config RateLimitConfig, now func() time.Time) *RateLimiter {
	if config.Capacity <= 0 {
		config.Capacity = SessionLimit.Capacity
	}
	if config.RefillPerSecond <= 0 {
		config.RefillPerSecond = SessionLimit.RefillPerSecond
	}
	if now == nil {
		now = time.Now
	}

	// Time for an empty bucket to refill, plus slack.
	idle := time.Duration(float64(config.Capacity)/config.RefillPerSecond*float64(time.Second)) + time.Minute

	return &RateLimiter{
		config:  config,
		limit:   rate.Limit(config.RefillPerSecond),
		buckets: cache.New(idle, idle),
		now:     now,
	}
}

// Config returns the effective bucket parameters.
func (rl *RateLimiter) Config() RateLimitConfig { return rl.config }

// Take consumes one token for key. When the bucket is empty it reports how
// long until the next token is available.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	limiter := rl.bucket(key)
	now := rl.now()

	if limiter.AllowN(now, 1) {
		// Touch the entry so the idle expiry restarts.
		rl.buckets.SetDefault(key, limiter)
		return true, 0
	}

	missing := 1 - limiter.TokensAt(now)
	wait := time.Duration(missing / rl.config.RefillPerSecond * float64(time.Second))
	return false, wait
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.limit, rl.config.Capacity)
	if err := rl.buckets.Add(key, limiter, cache.DefaultExpiration); err != nil {
		// Lost the race; use the bucket that won.
		if v, ok := rl.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// retryAfterSeconds rounds up to whole seconds, never below one.
func retryAfterSeconds(wait time.Duration) int {
	return max(int(math.Ceil(wait.Seconds())), 1)
}

// RateLimitMiddleware consumes a token per state-changing request. Safe
// methods are not counted. A request with no extractable key is let
// through; the limiter is abuse mitigation, not an access control.
func RateLimitMiddleware(rl *RateLimiter, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := rl.Take(key)
			if !ok {
				retryAfter := retryAfterSeconds(wait)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Capacity))

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":             ErrCodeRateLimited,
					"retryAfterSeconds": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIPAndPath is the limiter used on the session API.
func RateLimitByIPAndPath(rl *RateLimiter) Middleware {
	return RateLimitMiddleware(rl, IPAndPathKeyExtractor)
}
