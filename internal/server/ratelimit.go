package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MeKo-Tech/qrkit/internal/config"
)

// RateLimiter enforces per-client request rates and daily quotas. Usage
// records live in an expiring cache so idle clients are forgotten after a day.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64

	usage *cache.Cache
	now   func() time.Time
}

// UserUsage tracks usage for one client.
type UserUsage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	DataToday          int64

	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a limiter from the rate limit section of the config.
// Zero limits are not enforced.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: cfg.RequestsPerMinute,
		requestsPerHour:   cfg.RequestsPerHour,
		maxRequestsPerDay: cfg.RequestsPerDay,
		maxDataPerDay:     cfg.MaxDataPerDay,
		usage:             cache.New(25*time.Hour, time.Hour),
		now:               time.Now,
	}
}

// CheckRateLimit records a request of dataSize bytes from userID, or returns
// a *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) CheckRateLimit(userID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.getOrCreate(userID, now)
	resetWindows(usage, now)

	if err := rl.checkRates(usage, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(usage, dataSize, now); err != nil {
		return err
	}

	usage.RequestsLastMinute++
	usage.RequestsLastHour++
	usage.RequestsToday++
	usage.DataToday += dataSize
	return nil
}

func resetWindows(u *UserUsage, now time.Time) {
	if !sameDay(now, u.dayStart) {
		u.RequestsToday = 0
		u.DataToday = 0
		u.dayStart = now
	}
	if now.Sub(u.minuteStart) >= time.Minute {
		u.RequestsLastMinute = 0
		u.minuteStart = now
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.RequestsLastHour = 0
		u.hourStart = now
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (rl *RateLimiter) checkRates(u *UserUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && u.RequestsLastMinute >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: time.Minute - now.Sub(u.minuteStart)}
	}
	if rl.requestsPerHour > 0 && u.RequestsLastHour >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: time.Hour - now.Sub(u.hourStart)}
	}
	return nil
}

func (rl *RateLimiter) checkQuotas(u *UserUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if rl.maxRequestsPerDay > 0 && u.RequestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.RequestsToday), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.DataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.DataToday, Resets: resets}
	}
	return nil
}

func (rl *RateLimiter) getOrCreate(userID string, now time.Time) *UserUsage {
	if v, ok := rl.usage.Get(userID); ok {
		if u, ok := v.(*UserUsage); ok {
			return u
		}
	}
	u := &UserUsage{minuteStart: now, hourStart: now, dayStart: now}
	rl.usage.Set(userID, u, cache.DefaultExpiration)
	return u
}

// GetUsage returns a copy of the usage recorded for userID.
func (rl *RateLimiter) GetUsage(userID string) UserUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.usage.Get(userID); ok {
		if u, ok := v.(*UserUsage); ok {
			return *u
		}
	}
	return UserUsage{}
}

// RateLimitError reports a request rate violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
