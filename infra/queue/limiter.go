package queue

import (
	"context"
	"sync/atomic"
	"time"
)

// waitPollInterval is how often a blocked Enrich-queue dispatch retries
// the token bucket while waiting for capacity.
const waitPollInterval = 50 * time.Millisecond

// tokenBucket is a lock-free token bucket, the same atomic refill/CAS-consume
// design the original worker pool used for its per-pool rate limiter. Here
// it backs the Job Queue Contract's optional per-queue rate limiter
// (spec.md §4.6: Enrich at 10/1s), gating how fast the dispatcher pulls
// jobs off that queue's stream rather than how fast workers run.
type tokenBucket struct {
	tokens       int64
	maxTokens    int64
	refillRate   int64
	intervalNs   int64
	lastRefillNs int64
}

func newTokenBucket(ratePerSecond int, interval time.Duration) *tokenBucket {
	tokens := int64(ratePerSecond)
	return &tokenBucket{
		tokens:       tokens,
		maxTokens:    tokens,
		refillRate:   tokens,
		intervalNs:   int64(interval),
		lastRefillNs: time.Now().UnixNano(),
	}
}

func (r *tokenBucket) allow() bool {
	now := time.Now().UnixNano()
	intervalNs := atomic.LoadInt64(&r.intervalNs)
	lastRefill := atomic.LoadInt64(&r.lastRefillNs)

	elapsed := now - lastRefill
	if elapsed >= intervalNs {
		intervals := elapsed / intervalNs
		refillRate := atomic.LoadInt64(&r.refillRate)
		maxTokens := atomic.LoadInt64(&r.maxTokens)
		tokensToAdd := intervals * refillRate

		if atomic.CompareAndSwapInt64(&r.lastRefillNs, lastRefill, now) {
			for {
				current := atomic.LoadInt64(&r.tokens)
				newTokens := current + tokensToAdd
				if newTokens > maxTokens {
					newTokens = maxTokens
				}
				if atomic.CompareAndSwapInt64(&r.tokens, current, newTokens) {
					break
				}
			}
		}
	}

	for {
		current := atomic.LoadInt64(&r.tokens)
		if current <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&r.tokens, current, current-1) {
			return true
		}
	}
}

// wait blocks until a token is available or ctx is done, returning false
// in the latter case.
func (r *tokenBucket) wait(ctx context.Context) bool {
	for {
		if r.allow() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(waitPollInterval):
		}
	}
}
