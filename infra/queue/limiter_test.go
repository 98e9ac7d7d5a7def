package queue

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket_AllowsUpToRateThenBlocks(t *testing.T) {
	b := newTokenBucket(5, time.Second)

	for i := 0; i < 5; i++ {
		if !b.allow() {
			t.Fatalf("token %d: expected allow, got denied", i)
		}
	}
	if b.allow() {
		t.Fatal("expected 6th request to be denied once the bucket is empty")
	}
}

func TestTokenBucket_WaitReturnsFalseOnCancel(t *testing.T) {
	b := newTokenBucket(1, time.Second)
	b.allow() // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if b.wait(ctx) {
		t.Fatal("expected wait to give up once the context is cancelled")
	}
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	b := newTokenBucket(1000, 10*time.Millisecond)
	if !b.allow() {
		t.Fatal("expected first request to be allowed")
	}
	for b.allow() {
		// drain whatever burst remains
	}
	time.Sleep(20 * time.Millisecond)
	if !b.allow() {
		t.Fatal("expected tokens to refill after the interval elapses")
	}
}
