package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueueName identifies one of the pipeline's three named queues, each with
// its own concurrency cap and backoff policy (spec.md §4.6).
type QueueName string

const (
	QueueEmailProcess QueueName = "email-process"
	QueueEnrich       QueueName = "enrich"
	QueueRankCompute  QueueName = "rank-compute"
)

// JobStatus is the terminal lifecycle state of a JobRecord.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDeadLetter JobStatus = "dead_letter"
)

// EmailProcessPayload keys an Email-Process job by (user, message-id); the
// queue deduplicates enqueues sharing this key within its retention window
// (spec.md §4.1 step 3).
type EmailProcessPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	MessageID string    `json:"message_id"`
}

// EnrichPayload requests metadata for one or more video ids not yet
// present in VideoMetadata (spec.md §4.2).
type EnrichPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	VideoIDs []string  `json:"video_ids"`
}

// RankComputePayload requests a ranking pass for one Link belonging to
// UserID. The Rank-Compute queue runs at concurrency 1 to serialize
// per-user ranking writes (spec.md §4.5, §5).
type RankComputePayload struct {
	UserID uuid.UUID `json:"user_id"`
	LinkID int64      `json:"link_id"`
}

// JobRecord is the queue store's bookkeeping row for one job, identified
// by (queue name, job id). Lifecycle is governed entirely by the Job
// Queue Contract (spec.md §3, §4.6) — handlers never mutate it directly.
type JobRecord struct {
	ID             string    `json:"id"`
	Queue          QueueName `json:"queue"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Payload        []byte    `json:"payload"`
	AttemptCount   int       `json:"attempt_count"`
	MaxAttempts    int       `json:"max_attempts"`
	NextVisibleAt  time.Time `json:"next_visible_at"`
	Status         JobStatus `json:"status"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ExhaustedAttempts reports whether this job has used up its retry budget
// and is a candidate for the dead-letter queue.
func (j *JobRecord) ExhaustedAttempts() bool {
	return j.AttemptCount >= j.MaxAttempts
}

// BackoffDelay returns the exponential backoff (base 2s, doubling) for the
// next retry after AttemptCount failures (spec.md §4.6).
func BackoffDelay(base time.Duration, attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	delay := base
	for i := 0; i < attemptCount; i++ {
		delay *= 2
	}
	return delay
}
