package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// Terminal retention windows (spec.md §4.6): a completed job's record is
// kept briefly for introspection, a dead-lettered one much longer since
// it represents work nobody's retrying anymore.
const (
	completedRetention = 24 * time.Hour
	deadLetterRetention = 7 * 24 * time.Hour

	// pendingClaimMinIdle is how long a stream entry must sit unacked
	// before it's considered abandoned by a crashed consumer.
	pendingClaimMinIdle = 2 * time.Minute
)

// QueueConfig is one named queue's worker pool sizing and retry policy.
type QueueConfig struct {
	Name          domain.QueueName
	Concurrency   int
	MaxAttempts   int
	Backoff       time.Duration
	RatePerSecond int // 0 disables the dispatch-side rate limiter
}

type jobWorker struct {
	d  *Dispatcher
	qc QueueConfig
}

func (w *jobWorker) Do(ctx context.Context, env *envelope) error {
	return w.d.process(ctx, w.qc, env)
}

// Dispatcher runs one worker pool per named queue, each consuming from
// that queue's Redis Stream under a shared consumer group. It implements
// at-least-once delivery: a message is only acked once its job reaches a
// terminal state (completed or dead-lettered); a job still retrying stays
// pending in the stream, so a crash mid-backoff leaves it for
// reclaimStale to redeliver rather than losing it (spec.md §4.6).
type Dispatcher struct {
	stream              *redisStream
	client              *redis.Client
	handler             *Handler
	consumer            string
	pendingCheckInterval time.Duration
	logger              *logger.Logger

	configs  map[domain.QueueName]QueueConfig
	pools    map[domain.QueueName]*pool.WorkerGroup[*envelope]
	limiters map[domain.QueueName]*tokenBucket

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher builds a Dispatcher. consumer should be stable per process
// (config.WorkerID) so consumer-group pending-entry ownership survives
// restarts under the same identity.
func NewDispatcher(client *redis.Client, handler *Handler, consumer string, pendingCheckInterval time.Duration, configs []QueueConfig, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	if pendingCheckInterval <= 0 {
		pendingCheckInterval = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		stream:              newRedisStream(client),
		client:              client,
		handler:             handler,
		consumer:            consumer,
		pendingCheckInterval: pendingCheckInterval,
		logger:              log,
		configs:             make(map[domain.QueueName]QueueConfig, len(configs)),
		pools:               make(map[domain.QueueName]*pool.WorkerGroup[*envelope], len(configs)),
		limiters:            make(map[domain.QueueName]*tokenBucket),
		ctx:                 ctx,
		cancel:              cancel,
	}
	for _, qc := range configs {
		d.configs[qc.Name] = qc
		if qc.RatePerSecond > 0 {
			d.limiters[qc.Name] = newTokenBucket(qc.RatePerSecond, time.Second)
		}
	}
	return d
}

// Start launches every configured queue's pool, stream consumer, and
// pending-entry reclaimer.
func (d *Dispatcher) Start() error {
	for _, qc := range d.configs {
		worker := &jobWorker{d: d, qc: qc}
		wp := pool.New[*envelope](qc.Concurrency, worker).WithContinueOnError()
		if err := wp.Go(d.ctx); err != nil {
			return fmt.Errorf("start pool for queue %s: %w", qc.Name, err)
		}
		d.pools[qc.Name] = wp

		stream := streamKey(qc.Name)
		if err := d.stream.ensureGroup(d.ctx, stream); err != nil {
			return fmt.Errorf("ensure group for queue %s: %w", qc.Name, err)
		}

		d.wg.Add(2)
		go d.consumeLoop(qc, stream)
		go d.reclaimLoop(qc, stream)
	}

	d.logger.WithField("queues", len(d.configs)).Info("job dispatcher started")
	return nil
}

// Stop cancels every consumer loop and waits for in-flight pool workers to
// finish before closing each queue's pool.
func (d *Dispatcher) Stop() {
	d.cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	for name, wp := range d.pools {
		if err := wp.Close(closeCtx); err != nil {
			d.logger.WithError(err).WithField("queue", string(name)).Warn("error closing queue pool")
		}
	}
	d.wg.Wait()
	d.logger.Info("job dispatcher stopped")
}

func (d *Dispatcher) consumeLoop(qc QueueConfig, stream string) {
	defer d.wg.Done()

	for {
		if d.ctx.Err() != nil {
			return
		}

		streams, err := d.stream.read(d.ctx, stream, d.consumer, 10, 5*time.Second)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.logger.WithError(err).WithField("queue", string(qc.Name)).Warn("stream read failed")
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				rec, err := decodeRecord(msg.Values)
				if err != nil {
					d.logger.WithError(err).WithField("queue", string(qc.Name)).WithField("stream_id", msg.ID).
						Error("dropping undecodable job")
					d.stream.ack(d.ctx, stream, msg.ID)
					continue
				}
				d.dispatch(qc, stream, &envelope{id: msg.ID, stream: stream, record: rec})
			}
		}
	}
}

// reclaimLoop periodically re-delivers stream entries abandoned by a
// crashed consumer so no job is silently lost mid-retry.
func (d *Dispatcher) reclaimLoop(qc QueueConfig, stream string) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pendingCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			msgs, err := d.stream.reclaimStale(d.ctx, stream, d.consumer, pendingClaimMinIdle, 10)
			if err != nil {
				d.logger.WithError(err).WithField("queue", string(qc.Name)).Warn("pending reclaim failed")
				continue
			}
			for _, msg := range msgs {
				rec, err := decodeRecord(msg.Values)
				if err != nil {
					d.stream.ack(d.ctx, stream, msg.ID)
					continue
				}
				d.dispatch(qc, stream, &envelope{id: msg.ID, stream: stream, record: rec})
			}
		}
	}
}

func (d *Dispatcher) dispatch(qc QueueConfig, stream string, env *envelope) {
	if limiter := d.limiters[qc.Name]; limiter != nil {
		if !limiter.wait(d.ctx) {
			return
		}
	}
	if wp, ok := d.pools[qc.Name]; ok {
		wp.Submit(env)
	}
}

// process runs one job to completion or failure, applying the Job Queue
// Contract's backoff/dead-letter rules (spec.md §4.6).
func (d *Dispatcher) process(ctx context.Context, qc QueueConfig, env *envelope) error {
	rec := env.record
	log := d.logger.WithField("queue", string(qc.Name)).WithField("job_id", rec.ID)

	err := d.handler.Handle(ctx, rec)
	if err == nil {
		d.recordTerminal(ctx, rec, domain.JobStatusCompleted, "", completedRetention)
		d.stream.ack(ctx, env.stream, env.id)
		return nil
	}

	rec.AttemptCount++
	rec.LastError = err.Error()
	rec.UpdatedAt = time.Now().UTC()

	if rec.ExhaustedAttempts() {
		log.WithError(err).WithField("attempts", rec.AttemptCount).Warn("job exhausted retry budget, moving to dead letter")
		d.recordTerminal(ctx, rec, domain.JobStatusDeadLetter, err.Error(), deadLetterRetention)
		d.stream.ack(ctx, env.stream, env.id)
		return err
	}

	backoff := domain.BackoffDelay(qc.Backoff, rec.AttemptCount-1)
	rec.NextVisibleAt = time.Now().Add(backoff)
	log.WithError(err).WithField("attempt", rec.AttemptCount).WithField("backoff", backoff.String()).
		Warn("job failed, scheduling retry")

	// The stream entry stays un-acked across this sleep; if the process
	// dies before the retry runs, reclaimStale redelivers it instead of
	// the retry being lost.
	time.AfterFunc(backoff, func() {
		if d.ctx.Err() != nil {
			return
		}
		d.dispatch(qc, env.stream, env)
	})
	return err
}

func (d *Dispatcher) recordTerminal(ctx context.Context, rec *domain.JobRecord, status domain.JobStatus, lastErr string, ttl time.Duration) {
	rec.Status = status
	if lastErr != "" {
		rec.LastError = lastErr
	}
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		d.logger.WithError(err).Warn("failed to marshal terminal job record")
		return
	}
	key := fmt.Sprintf("queue:%s:%s", status, rec.ID)
	if err := d.client.Set(ctx, key, data, ttl).Err(); err != nil {
		d.logger.WithError(err).WithField("job_id", rec.ID).Warn("failed to persist terminal job record")
	}
}
