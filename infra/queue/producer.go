package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// dedupWindow bounds how long an idempotency key suppresses a repeat
// enqueue on the same queue. It matches the dead-letter terminal retention
// window (spec.md §4.6) so a key can't be reused while its prior attempt's
// outcome is still on record.
const dedupWindow = 7 * 24 * time.Hour

func dedupKey(q domain.QueueName, idempotencyKey string) string {
	return "queue:dedup:" + string(q) + ":" + idempotencyKey
}

// Producer is the Redis Streams-backed out.JobProducer: every enqueue is
// deduplicated by idempotency key before being published to its queue's
// stream as a domain.JobRecord envelope.
type Producer struct {
	stream      *redisStream
	client      *redis.Client
	maxAttempts map[domain.QueueName]int
	logger      *logger.Logger
}

// NewProducer builds a Producer. maxAttempts supplies each queue's retry
// budget, stamped onto every JobRecord at enqueue time so the dispatcher
// never needs its own copy of the config.
func NewProducer(client *redis.Client, maxAttempts map[domain.QueueName]int, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Default()
	}
	return &Producer{stream: newRedisStream(client), client: client, maxAttempts: maxAttempts, logger: log}
}

func (p *Producer) EnqueueEmailProcess(ctx context.Context, idempotencyKey string, payload domain.EmailProcessPayload) error {
	return p.enqueue(ctx, domain.QueueEmailProcess, idempotencyKey, payload)
}

func (p *Producer) EnqueueEnrich(ctx context.Context, idempotencyKey string, payload domain.EnrichPayload) error {
	return p.enqueue(ctx, domain.QueueEnrich, idempotencyKey, payload)
}

func (p *Producer) EnqueueRankCompute(ctx context.Context, idempotencyKey string, payload domain.RankComputePayload) error {
	return p.enqueue(ctx, domain.QueueRankCompute, idempotencyKey, payload)
}

func (p *Producer) enqueue(ctx context.Context, q domain.QueueName, idempotencyKey string, payload interface{}) error {
	if idempotencyKey != "" {
		set, err := p.client.SetNX(ctx, dedupKey(q, idempotencyKey), 1, dedupWindow).Result()
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if !set {
			p.logger.WithField("queue", string(q)).WithField("idempotency_key", idempotencyKey).
				Debug("duplicate enqueue suppressed")
			return nil
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.JobRecord{
		ID:             uuid.New().String(),
		Queue:          q,
		IdempotencyKey: idempotencyKey,
		Payload:        body,
		MaxAttempts:    p.maxAttempts[q],
		NextVisibleAt:  now,
		Status:         domain.JobStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stream := streamKey(q)
	if err := p.stream.ensureGroup(ctx, stream); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	if _, err := p.stream.add(ctx, stream, record); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

var _ out.JobProducer = (*Producer)(nil)
