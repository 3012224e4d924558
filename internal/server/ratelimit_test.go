package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrkit/internal/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg config.RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterPerMinute(t *testing.T) {
	rl, clock := newTestLimiter(config.RateLimitConfig{RequestsPerMinute: 2})

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))

	err := rl.CheckRateLimit("a", 0)
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, "minute", rateErr.Type)
	assert.Equal(t, 2, rateErr.Limit)
	assert.Equal(t, time.Minute, rateErr.RetryAfter)

	// Other clients are unaffected.
	require.NoError(t, rl.CheckRateLimit("b", 0))

	clock.advance(time.Minute)
	require.NoError(t, rl.CheckRateLimit("a", 0))
	assert.Equal(t, 3, rl.GetUsage("a").RequestsToday)
}

func TestRateLimiterPerHour(t *testing.T) {
	rl, clock := newTestLimiter(config.RateLimitConfig{RequestsPerHour: 3})

	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
		clock.advance(2 * time.Minute)
	}
	var rateErr *RateLimitError
	require.ErrorAs(t, rl.CheckRateLimit("a", 0), &rateErr)
	assert.Equal(t, "hour", rateErr.Type)
	assert.Equal(t, 54*time.Minute, rateErr.RetryAfter)
}

func TestRateLimiterDailyQuotas(t *testing.T) {
	rl, clock := newTestLimiter(config.RateLimitConfig{RequestsPerDay: 5, MaxDataPerDay: 100})

	require.NoError(t, rl.CheckRateLimit("a", 60))

	var quotaErr *QuotaExceededError
	require.ErrorAs(t, rl.CheckRateLimit("a", 50), &quotaErr)
	assert.Equal(t, "data", quotaErr.Type)
	assert.Equal(t, int64(60), quotaErr.Used)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), quotaErr.Resets)

	// Rejected requests are not recorded.
	assert.Equal(t, 1, rl.GetUsage("a").RequestsToday)

	for range 4 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
	}
	require.ErrorAs(t, rl.CheckRateLimit("a", 0), &quotaErr)
	assert.Equal(t, "requests", quotaErr.Type)

	clock.advance(14 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("a", 90))
	assert.Equal(t, int64(90), rl.GetUsage("a").DataToday)
}

func TestRateLimiterUnknownUser(t *testing.T) {
	rl, _ := newTestLimiter(config.RateLimitConfig{})
	assert.Equal(t, UserUsage{}, rl.GetUsage("nobody"))
}

func TestRateLimitMiddleware(t *testing.T) {
	s := NewServer(Config{RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}})
	h := s.Handler()

	encode := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/encode", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := encode()
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := encode()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "minute", second.Header().Get("X-RateLimit-Type"))
	assert.Equal(t, "1", second.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// Health checks bypass the limiter.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", " 198.51.100.2 ")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}
