package out

import (
	"context"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

// JobProducer enqueues work onto the pipeline's three named queues
// (spec.md §4.6). One method per queue, mirroring the teacher's
// per-job-type Publish methods rather than a single untyped Enqueue, so
// each payload's shape stays visible at the call site.
type JobProducer interface {
	// EnqueueEmailProcess schedules one inbound message for link
	// extraction, deduplicated by idempotencyKey within the queue's
	// retention window (spec.md §4.1 step 3).
	EnqueueEmailProcess(ctx context.Context, idempotencyKey string, payload domain.EmailProcessPayload) error

	// EnqueueEnrich schedules a metadata fetch for one or more video ids.
	EnqueueEnrich(ctx context.Context, idempotencyKey string, payload domain.EnrichPayload) error

	// EnqueueRankCompute schedules a ranking pass for one Link.
	EnqueueRankCompute(ctx context.Context, idempotencyKey string, payload domain.RankComputePayload) error
}
