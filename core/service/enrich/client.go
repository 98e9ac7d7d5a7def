// Package enrich implements the metadata Enrichment Client: cache-first
// lookup of YouTube video metadata, batched and quota-protected behind a
// shared circuit breaker and rate limiter (spec.md §4.3).
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/ratelimit"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/resilience"
)

// metadataCache is the subset of pkg/cache.RedisCache this client needs;
// narrowing to an interface here (rather than depending on the concrete
// Redis-backed type) lets tests exercise the batching/retry orchestration
// with an in-memory stand-in instead of a live Redis connection.
type metadataCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

const maxBatchAttempts = 3

// metadataCacheKeyPrefix gives the read-through metadata cache its key
// shape, video:metadata:{video-id}.
const metadataCacheKeyPrefix = "video:metadata:"

func cacheKey(videoID string) string {
	return metadataCacheKeyPrefix + videoID
}

// Client is the Enrichment Client: cache probe, circuit breaker, batching,
// parsing, write-through, all in one call (spec.md §4.3).
type Client struct {
	cache     metadataCache
	breaker   *resilience.CircuitBreaker
	limiter   *ratelimit.APIProtector
	provider  out.MetadataProvider
	store     domain.VideoMetadataRepository
	batchSize int
	cacheTTL  time.Duration
	logger    *logger.Logger
}

// NewClient builds an Enrichment Client. store may be nil in tests that
// only care about the cache/breaker/limiter orchestration.
func NewClient(
	redisCache metadataCache,
	breaker *resilience.CircuitBreaker,
	limiter *ratelimit.APIProtector,
	provider out.MetadataProvider,
	store domain.VideoMetadataRepository,
	batchSize int,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Client {
	if batchSize <= 0 {
		batchSize = 50
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		cache:     redisCache,
		breaker:   breaker,
		limiter:   limiter,
		provider:  provider,
		store:     store,
		batchSize: batchSize,
		cacheTTL:  cacheTTL,
		logger:    log,
	}
}

// GetMetadata resolves metadata for videoIDs: cache hits return
// immediately, misses are batched through the upstream behind the circuit
// breaker and rate limiter, and newly fetched metadata is written through
// to the cache and the relational store before returning (spec.md §4.3).
//
// A partial result is always returned alongside any error: metadata
// already resolved (from cache or from batches that completed before a
// failing batch) is usable even when a later batch fails.
func (c *Client) GetMetadata(ctx context.Context, videoIDs []string) (map[string]*domain.VideoMetadata, error) {
	result := make(map[string]*domain.VideoMetadata, len(videoIDs))

	var missing []string
	seen := make(map[string]bool, len(videoIDs))
	for _, id := range videoIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		var cached domain.VideoMetadata
		hit, err := c.cache.GetJSON(ctx, cacheKey(id), &cached)
		if err != nil {
			c.logger.WithError(err).WithField("video_id", id).Warn("metadata cache read failed, treating as miss")
		}
		if hit {
			result[id] = &cached
			continue
		}
		missing = append(missing, id)
	}

	for _, batch := range chunk(missing, c.batchSize) {
		videos, err := c.fetchBatchProtected(ctx, batch)
		if err != nil {
			return result, err
		}
		for i := range videos {
			meta := convertMetadata(videos[i])
			result[meta.VideoID] = meta

			if err := c.cache.SetJSON(ctx, cacheKey(meta.VideoID), meta, c.cacheTTL); err != nil {
				c.logger.WithError(err).WithField("video_id", meta.VideoID).Warn("metadata write-through cache failed")
			}
			if c.store != nil {
				if err := c.store.Upsert(ctx, meta); err != nil {
					c.logger.WithError(err).WithField("video_id", meta.VideoID).Error("failed to persist video metadata")
				}
			}
		}
	}

	return result, nil
}

// ProcessEnrich is the handler invoked for every Enrich job: it resolves
// metadata for the requested video ids, relying on GetMetadata's
// write-through to persist results, and only reports the error.
func (c *Client) ProcessEnrich(ctx context.Context, payload domain.EnrichPayload) error {
	_, err := c.GetMetadata(ctx, payload.VideoIDs)
	return err
}

// fetchBatchProtected runs one batch through the rate limiter and circuit
// breaker, translating their sentinel errors to the client's error surface
// (spec.md §4.3 Error surface).
func (c *Client) fetchBatchProtected(ctx context.Context, batch []string) ([]out.MetadataVideo, error) {
	key := strings.Join(batch, ",")

	protection, release := c.limiter.Acquire(ctx, key)
	if !protection.Allowed {
		if protection.ShouldWait && protection.WaitDuration > 0 {
			if !sleepCtx(ctx, protection.WaitDuration) {
				return nil, ctx.Err()
			}
			protection, release = c.limiter.Acquire(ctx, key)
		}
		if !protection.Allowed {
			return nil, apperr.TransientUpstream("youtube", fmt.Errorf("rate limit protection denied batch: %s", protection.Reason))
		}
	}
	defer release()

	var videos []out.MetadataVideo
	breakerErr := c.breaker.Execute(ctx, func() error {
		fetched, err := c.fetchBatchWithRetry(ctx, batch)
		if err != nil {
			return err
		}
		videos = fetched
		return nil
	})
	if breakerErr != nil {
		if errors.Is(breakerErr, resilience.ErrCircuitOpen) || errors.Is(breakerErr, resilience.ErrTooManyRequest) {
			return nil, apperr.CircuitOpen(c.breaker.Name())
		}
		return nil, breakerErr
	}

	return videos, nil
}

// fetchBatchWithRetry issues one batch call, retrying per spec.md §4.3's
// retry rules up to maxBatchAttempts times.
func (c *Client) fetchBatchWithRetry(ctx context.Context, batch []string) ([]out.MetadataVideo, error) {
	var lastErr error

	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		videos, err := c.provider.ListVideos(ctx, batch)
		if err == nil {
			return videos, nil
		}

		var quotaErr *out.QuotaExhaustedError
		if errors.As(err, &quotaErr) {
			return nil, apperr.QuotaExceeded("youtube")
		}

		var rateLimitErr *out.RateLimitedError
		if errors.As(err, &rateLimitErr) {
			wait := rateLimitErr.RetryAfter
			if wait <= 0 {
				wait = time.Duration(1<<uint(attempt)) * time.Second
			}
			lastErr = err
			if attempt == maxBatchAttempts {
				break
			}
			if !sleepCtx(ctx, wait) {
				return nil, ctx.Err()
			}
			continue
		}

		lastErr = err
		if attempt == maxBatchAttempts {
			break
		}
		if !sleepCtx(ctx, time.Duration(1<<uint(attempt))*time.Second) {
			return nil, ctx.Err()
		}
	}

	return nil, apperr.TransientUpstream("youtube", lastErr)
}

// sleepCtx sleeps for d or returns false if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// chunk partitions ids into slices of at most size (spec.md §4.3 step 3).
func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var batches [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}
	return batches
}

// convertMetadata parses the upstream's raw transport fields into the
// persisted domain shape (spec.md §4.3 step 4).
func convertMetadata(v out.MetadataVideo) *domain.VideoMetadata {
	publishedAt, _ := time.Parse(time.RFC3339, v.PublishedAt)
	return &domain.VideoMetadata{
		VideoID:             v.VideoID,
		Title:               v.Title,
		ChannelID:           v.ChannelID,
		ChannelTitle:        v.ChannelTitle,
		PublishedAt:         publishedAt,
		DurationSeconds:     parseISO8601Duration(v.Duration),
		Category:            v.Category,
		DescriptionKeywords: descriptionKeywords(v.Description),
		ThumbnailURL:        v.ThumbnailURL,
		ViewCount:           v.ViewCount,
		LikeCount:           v.LikeCount,
		FetchedAt:           time.Now().UTC(),
	}
}
