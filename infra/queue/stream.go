// Package queue implements the Job Queue Contract (spec.md §4.6) on top of
// Redis Streams: one stream per named queue, consumer-group delivery,
// per-queue worker pools, exponential backoff, and dead-lettering on
// exhausted attempts. The Streams primitives here are the same
// XAdd/XReadGroup/XAck shape the original worker pool used for its job
// queues, generalized from five hardcoded mail/ai/rag streams to the
// pipeline's three named queues carrying a common domain.JobRecord
// envelope instead of an untyped payload map.
package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

var errRecordFieldMissing = errors.New("queue: stream message missing record field")

// consumerGroup is shared by every worker process; each process identifies
// itself as a distinct consumer within the group (its WorkerID).
const consumerGroup = "pipeline-workers"

func streamKey(q domain.QueueName) string {
	return "queue:stream:" + string(q)
}

// envelope pairs a decoded JobRecord with the Streams message id it needs
// acked, so acking can be deferred until the job reaches a terminal state.
type envelope struct {
	id     string
	stream string
	record *domain.JobRecord
}

type redisStream struct {
	client *redis.Client
}

func newRedisStream(client *redis.Client) *redisStream {
	return &redisStream{client: client}
}

func (s *redisStream) ensureGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *redisStream) add(ctx context.Context, stream string, record *domain.JobRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"record": data},
	}).Result()
}

func (s *redisStream) read(ctx context.Context, stream, consumer string, count int64, block time.Duration) ([]redis.XStream, error) {
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

func (s *redisStream) ack(ctx context.Context, stream, id string) {
	if err := s.client.XAck(ctx, stream, consumerGroup, id).Err(); err != nil {
		// Losing an ack only risks a harmless re-delivery once the entry
		// goes stale; never worth failing the job over.
		_ = err
	}
}

// reclaimStale re-delivers pending entries idle longer than minIdle to
// consumer. A job only stays pending past its own backoff sleep if the
// process handling it crashed mid-retry; this is how such a job gets
// picked back up without losing at-least-once delivery.
func (s *redisStream) reclaimStale(ctx context.Context, stream, consumer string, minIdle time.Duration, count int64) ([]redis.XMessage, error) {
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    consumerGroup,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    count,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return msgs, nil
}

func decodeRecord(values map[string]interface{}) (*domain.JobRecord, error) {
	raw, ok := values["record"].(string)
	if !ok {
		return nil, errRecordFieldMissing
	}
	var rec domain.JobRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
