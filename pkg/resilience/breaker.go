// Package resilience provides fault tolerance patterns for external service
// calls. CircuitBreaker mirrors the shape of github.com/sony/gobreaker
// (Name, ReadyToTrip-style thresholds, OnStateChange) but keeps its counters
// and state in Redis so every worker process trips and recovers the same
// breaker together instead of each holding its own local copy.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int32

const (
	StateClosed   CircuitState = iota // Normal operation, requests pass through
	StateOpen                         // Circuit open, requests fail immediately
	StateHalfOpen                     // Testing if the upstream recovered
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func parseState(v int64) CircuitState {
	switch v {
	case int64(StateOpen):
		return StateOpen
	case int64(StateHalfOpen):
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Errors returned by the circuit breaker.
var (
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrTooManyRequest = errors.New("too many requests in half-open state")
)

// Config holds configuration for a circuit breaker.
type Config struct {
	Name               string        // Name for logging/metrics, also the Redis key prefix
	FailureThreshold   int           // Consecutive failures before opening (default: 3)
	SuccessThreshold   int           // Successes in half-open needed to close (default: 2)
	Timeout            time.Duration // Time open before probing half-open (default: 60s)
	MaxHalfOpenRequest int           // Max concurrent probes while half-open (default: 1)
}

// DefaultConfig returns the default breaker thresholds for name, the same
// values config.Load uses when the BREAKER_* variables are unset.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:               name,
		FailureThreshold:   3,
		SuccessThreshold:   2,
		Timeout:            60 * time.Second,
		MaxHalfOpenRequest: 1,
	}
}

// CircuitBreaker implements the circuit breaker pattern with state shared
// across processes through Redis.
type CircuitBreaker struct {
	redis *redis.Client
	name  string

	failureThreshold   int
	successThreshold   int
	timeout            time.Duration
	maxHalfOpenRequest int

	mu            sync.RWMutex
	onStateChange func(name string, from, to CircuitState)
}

// NewCircuitBreaker creates a breaker backed by redisClient using cfg. A nil
// redisClient degrades the breaker to always-allow (fail open), matching the
// sliding window limiter's failure mode.
func NewCircuitBreaker(redisClient *redis.Client, cfg *Config) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}

	return &CircuitBreaker{
		redis:              redisClient,
		name:               cfg.Name,
		failureThreshold:   cfg.FailureThreshold,
		successThreshold:   cfg.SuccessThreshold,
		timeout:            cfg.Timeout,
		maxHalfOpenRequest: cfg.MaxHalfOpenRequest,
	}
}

// OnStateChange sets a callback invoked whenever this process observes a
// transition. Because state is shared, a process can observe a transition
// that another process actually triggered.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) key(suffix string) string {
	return fmt.Sprintf("circuit_breaker:%s:%s", cb.name, suffix)
}

// State returns the current shared state.
func (cb *CircuitBreaker) State(ctx context.Context) CircuitState {
	if cb.redis == nil {
		return StateClosed
	}
	v, err := cb.redis.Get(ctx, cb.key("state")).Int64()
	if err != nil {
		return StateClosed
	}
	return parseState(v)
}

// beforeRequestScript atomically decides whether a call may proceed and, if
// the open timeout elapsed, flips the shared state to half-open.
var beforeRequestScript = redis.NewScript(`
	local state_key = KEYS[1]
	local last_failure_key = KEYS[2]
	local half_open_key = KEYS[3]
	local success_key = KEYS[4]
	local now_ms = tonumber(ARGV[1])
	local timeout_ms = tonumber(ARGV[2])
	local max_half_open = tonumber(ARGV[3])

	local state = tonumber(redis.call('GET', state_key) or '0')

	if state == 0 then
		return {0, 0, 0}
	end

	if state == 1 then
		local last_failure = tonumber(redis.call('GET', last_failure_key) or '0')
		if (now_ms - last_failure) > timeout_ms then
			redis.call('SET', state_key, '2')
			redis.call('SET', half_open_key, '0')
			redis.call('SET', success_key, '0')
			return {0, 1, 0}
		end
		return {1, 0, 0}
	end

	local current = redis.call('INCR', half_open_key)
	if current > max_half_open then
		redis.call('DECR', half_open_key)
		return {2, 0, 0}
	end
	return {0, 0, 0}
`)

// beforeRequest checks (and possibly advances) shared state before a call.
func (cb *CircuitBreaker) beforeRequest(ctx context.Context) error {
	if cb.redis == nil {
		return nil
	}

	result, err := beforeRequestScript.Run(ctx, cb.redis,
		[]string{cb.key("state"), cb.key("last_failure_ms"), cb.key("half_open_reqs"), cb.key("successes")},
		time.Now().UnixMilli(), cb.timeout.Milliseconds(), cb.maxHalfOpenRequest,
	).Int64Slice()
	if err != nil {
		// Fail open: a Redis hiccup must not stall the pipeline.
		return nil
	}

	switch result[0] {
	case 1:
		return ErrCircuitOpen
	case 2:
		return ErrTooManyRequest
	}

	if result[1] == 1 {
		cb.notify(StateOpen, StateHalfOpen)
	}
	return nil
}

// afterRequestScript atomically records the outcome and advances state.
var afterRequestScript = redis.NewScript(`
	local state_key = KEYS[1]
	local failure_key = KEYS[2]
	local success_key = KEYS[3]
	local last_failure_key = KEYS[4]
	local half_open_key = KEYS[5]
	local failed = tonumber(ARGV[1])
	local now_ms = tonumber(ARGV[2])
	local failure_threshold = tonumber(ARGV[3])
	local success_threshold = tonumber(ARGV[4])

	local state = tonumber(redis.call('GET', state_key) or '0')

	if failed == 1 then
		redis.call('SET', last_failure_key, now_ms)
		redis.call('SET', success_key, '0')
		local failures = redis.call('INCR', failure_key)

		if state == 2 then
			redis.call('SET', state_key, '1')
			redis.call('SET', failure_key, '0')
			redis.call('DECR', half_open_key)
			return {2, 1}
		elseif state == 0 and failures >= failure_threshold then
			redis.call('SET', state_key, '1')
			redis.call('SET', failure_key, '0')
			return {0, 1}
		end
		return {state, 0}
	end

	redis.call('SET', failure_key, '0')

	if state == 2 then
		redis.call('DECR', half_open_key)
		local successes = redis.call('INCR', success_key)
		if successes >= success_threshold then
			redis.call('SET', state_key, '0')
			redis.call('SET', success_key, '0')
			return {2, 2}
		end
	end

	return {state, 0}
`)

// afterRequest records the outcome of a call and advances shared state.
func (cb *CircuitBreaker) afterRequest(ctx context.Context, callErr error) {
	if cb.redis == nil {
		return
	}

	failed := int64(0)
	if callErr != nil {
		failed = 1
	}

	result, err := afterRequestScript.Run(ctx, cb.redis,
		[]string{cb.key("state"), cb.key("failures"), cb.key("successes"), cb.key("last_failure_ms"), cb.key("half_open_reqs")},
		failed, time.Now().UnixMilli(), cb.failureThreshold, cb.successThreshold,
	).Int64Slice()
	if err != nil {
		return
	}

	switch result[1] {
	case 1:
		cb.notify(parseState(result[0]), StateOpen)
	case 2:
		cb.notify(StateHalfOpen, StateClosed)
	}
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from == to {
		return
	}
	cb.mu.RLock()
	callback := cb.onStateChange
	cb.mu.RUnlock()
	if callback != nil {
		callback(cb.name, from, to)
	}
}

// Execute runs fn with circuit breaker protection, fast-failing with
// ErrCircuitOpen or ErrTooManyRequest when the shared breaker disallows it.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(ctx); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(ctx, err)
	return err
}

// Reset forces the shared breaker back to closed state.
func (cb *CircuitBreaker) Reset(ctx context.Context) error {
	if cb.redis == nil {
		return nil
	}
	pipe := cb.redis.Pipeline()
	pipe.Set(ctx, cb.key("state"), "0", 0)
	pipe.Set(ctx, cb.key("failures"), "0", 0)
	pipe.Set(ctx, cb.key("successes"), "0", 0)
	pipe.Set(ctx, cb.key("half_open_reqs"), "0", 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Stats reports the breaker's current shared counters.
type Stats struct {
	Name         string
	State        string
	Failures     int64
	Successes    int64
	LastFailure  time.Time
	HalfOpenReqs int64
}

// Stats returns the breaker's current statistics.
func (cb *CircuitBreaker) Stats(ctx context.Context) Stats {
	stats := Stats{Name: cb.name, State: StateClosed.String()}
	if cb.redis == nil {
		return stats
	}

	pipe := cb.redis.Pipeline()
	stateCmd := pipe.Get(ctx, cb.key("state"))
	failuresCmd := pipe.Get(ctx, cb.key("failures"))
	successesCmd := pipe.Get(ctx, cb.key("successes"))
	lastFailureCmd := pipe.Get(ctx, cb.key("last_failure_ms"))
	halfOpenCmd := pipe.Get(ctx, cb.key("half_open_reqs"))
	_, _ = pipe.Exec(ctx)

	if v, err := stateCmd.Int64(); err == nil {
		stats.State = parseState(v).String()
	}
	if v, err := failuresCmd.Int64(); err == nil {
		stats.Failures = v
	}
	if v, err := successesCmd.Int64(); err == nil {
		stats.Successes = v
	}
	if v, err := lastFailureCmd.Int64(); err == nil && v > 0 {
		stats.LastFailure = time.UnixMilli(v)
	}
	if v, err := halfOpenCmd.Int64(); err == nil {
		stats.HalfOpenReqs = v
	}

	return stats
}
