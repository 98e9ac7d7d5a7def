// Package ratelimit provides shared, Redis-backed protection for calls to
// the metadata enrichment upstream: a concurrency semaphore, a sliding
// window rate limiter, and a debouncer against duplicate in-flight batches.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds protector configuration.
type Config struct {
	MaxConcurrent     int           // max simultaneous upstream calls from this process
	RequestsPerSecond int           // shared rate limit (default: 10, matches youtube.requestsPerSecond)
	BurstSize         int           // burst allowance on top of RequestsPerSecond
	DebounceDuration  time.Duration // duplicate-batch suppression window
}

// DefaultConfig returns the spec's default enrichment protection settings.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:     10,
		RequestsPerSecond: 10,
		BurstSize:         5,
		DebounceDuration:  1 * time.Second,
	}
}

// APIProtector composes a semaphore, a shared sliding-window limiter, and a
// debouncer in front of an upstream call.
type APIProtector struct {
	config      *Config
	semaphore   chan struct{}
	rateLimiter *SlidingWindowLimiter
	debouncer   *Debouncer
}

// NewAPIProtector builds a protector backed by the given Redis client.
func NewAPIProtector(redisClient *redis.Client, config *Config) *APIProtector {
	if config == nil {
		config = DefaultConfig()
	}

	return &APIProtector{
		config:      config,
		semaphore:   make(chan struct{}, config.MaxConcurrent),
		rateLimiter: NewSlidingWindowLimiter(redisClient, config.RequestsPerSecond, config.BurstSize),
		debouncer:   NewDebouncer(redisClient, config.DebounceDuration),
	}
}

// ProtectionResult reports why a call was or wasn't allowed.
type ProtectionResult struct {
	Allowed      bool
	Reason       string
	ShouldWait   bool
	WaitDuration time.Duration
	FromDebounce bool
}

// Acquire tries to acquire permission to call the upstream for key
// (the enrich client passes the batch's video ids joined with commas, in
// batch order). The returned release
// function must be called once the call completes; it is nil when Allowed
// is false.
func (p *APIProtector) Acquire(ctx context.Context, key string) (*ProtectionResult, func()) {
	select {
	case p.semaphore <- struct{}{}:
	default:
		return &ProtectionResult{Allowed: false, Reason: "too many concurrent requests"}, nil
	}

	release := func() { <-p.semaphore }

	if p.debouncer.IsDuplicate(ctx, key) {
		release()
		return &ProtectionResult{Allowed: false, Reason: "duplicate in-flight batch", FromDebounce: true}, nil
	}

	allowed, wait := p.rateLimiter.Allow(ctx, key)
	if !allowed {
		release()
		return &ProtectionResult{Allowed: false, Reason: "rate limit exceeded", ShouldWait: wait > 0, WaitDuration: wait}, nil
	}

	p.debouncer.Mark(ctx, key)
	return &ProtectionResult{Allowed: true}, release
}

// SlidingWindowLimiter implements sliding-window rate limiting in Redis so
// the limit is shared across every enrichment worker process.
type SlidingWindowLimiter struct {
	redis     *redis.Client
	rate      int
	window    time.Duration
	burstSize int
}

// NewSlidingWindowLimiter builds a limiter for ratePerSecond requests with
// burstSize extra tokens of slack.
func NewSlidingWindowLimiter(redisClient *redis.Client, requestsPerSecond, burstSize int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:     redisClient,
		rate:      requestsPerSecond,
		window:    time.Second,
		burstSize: burstSize,
	}
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		if #oldest > 0 then
			return -(oldest[2] + window_ms - now)
		end
		return 0
	end
`)

// Allow reports whether a call for key is allowed now, or how long to wait.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil {
		return true, 0
	}

	now := time.Now()
	windowStart := now.Add(-l.window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	result, err := slidingWindowScript.Run(ctx, l.redis, []string{redisKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.rate+l.burstSize,
		l.window.Milliseconds(),
	).Int64()

	if err != nil {
		// Fail open: a Redis hiccup should not stall the pipeline.
		return true, 0
	}

	if result == 1 {
		return true, 0
	}
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}
	return false, l.window
}

// Debouncer suppresses duplicate calls for the same key within a window.
type Debouncer struct {
	redis    *redis.Client
	duration time.Duration
	local    map[string]time.Time
	mu       sync.RWMutex
}

// NewDebouncer builds a debouncer with a local fallback for when Redis is
// unavailable.
func NewDebouncer(redisClient *redis.Client, duration time.Duration) *Debouncer {
	return &Debouncer{
		redis:    redisClient,
		duration: duration,
		local:    make(map[string]time.Time),
	}
}

// IsDuplicate reports whether key was already marked within the window.
func (d *Debouncer) IsDuplicate(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("debounce:%s", key)

	if d.redis != nil {
		exists, err := d.redis.Exists(ctx, redisKey).Result()
		if err == nil {
			return exists > 0
		}
	}

	d.mu.RLock()
	lastTime, exists := d.local[key]
	d.mu.RUnlock()

	return exists && time.Since(lastTime) < d.duration
}

// Mark records key as in-flight.
func (d *Debouncer) Mark(ctx context.Context, key string) {
	redisKey := fmt.Sprintf("debounce:%s", key)

	if d.redis != nil {
		d.redis.Set(ctx, redisKey, "1", d.duration)
	}

	d.mu.Lock()
	d.local[key] = time.Now()
	d.mu.Unlock()

	go d.cleanup()
}

func (d *Debouncer) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for k, v := range d.local {
		if now.Sub(v) > d.duration*2 {
			delete(d.local, k)
		}
	}
}
