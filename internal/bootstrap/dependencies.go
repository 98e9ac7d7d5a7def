// Package bootstrap is the composition root: it wires config into a pgx
// pool and Redis client, builds every repository adapter and outbound
// provider, layers the cache/breaker/rate-limiter around the enrichment
// client, and assembles the three core services plus the job queue that
// drives them (spec.md §9 prefers this explicit construction over
// package-level singletons).
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/adapter/out/persistence"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/adapter/out/provider/gmail"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/adapter/out/provider/youtube"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/config"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/enrich"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/eval"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/process"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/rank"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/sync"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/infra/database"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/infra/queue"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/cache"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/crypto"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/ratelimit"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/resilience"
)

// Dependencies holds every constructed component the worker needs. Fields
// are exported so a caller (tests, an alternate entrypoint) can reach in
// and replace a piece before calling NewWorker.
type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client

	Users         domain.UserRepository
	Emails        domain.EmailRepository
	Links         domain.LinkRepository
	SenderStats   domain.SenderStatsRepository
	VideoMetadata domain.VideoMetadataRepository
	Rankings      domain.RankingRepository
	Feedback      domain.FeedbackRepository
	EmailTx       *persistence.EmailProcessorUnitOfWork

	Inbox    *gmail.InboxAdapter
	Metadata *youtube.MetadataAdapter

	MetadataCache *cache.RedisCache
	Breaker       *resilience.CircuitBreaker
	RateLimiter   *ratelimit.APIProtector

	EnrichClient   *enrich.Client
	EmailProcessor *process.EmailProcessor
	Synchronizer   *sync.Synchronizer
	Ranker         *rank.Ranker
	Harness        *eval.Harness

	JobProducer *queue.Producer
	JobHandler  *queue.Handler
	Dispatcher  *queue.Dispatcher
}

// NewDependencies builds the full dependency graph for cfg. The returned
// cleanup func closes the pool and Redis client in reverse acquisition
// order; it is always safe to call even if construction failed partway,
// since only what was actually opened is registered.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if err := crypto.Init(); err != nil {
		logger.Warn("encryption key not configured, stored credentials cannot be decrypted: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect redis: %w", err)
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })

	deps.Users = persistence.NewUserAdapter(db)
	deps.Emails = persistence.NewEmailAdapter(db)
	deps.Links = persistence.NewLinkAdapter(db)
	deps.SenderStats = persistence.NewSenderStatsAdapter(db)
	deps.VideoMetadata = persistence.NewVideoMetadataAdapter(db)
	deps.Rankings = persistence.NewRankingAdapter(db)
	deps.Feedback = persistence.NewFeedbackAdapter(db)
	deps.EmailTx = persistence.NewEmailProcessorUnitOfWork(db)

	deps.Inbox = gmail.NewInboxAdapter(gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	metadataAdapter, err := youtube.NewMetadataAdapter(context.Background(), cfg.YouTubeAPIKey)
	if err != nil {
		return nil, cleanup, fmt.Errorf("build youtube adapter: %w", err)
	}
	deps.Metadata = metadataAdapter

	deps.MetadataCache = cache.NewRedisCache(redisClient)
	deps.Breaker = resilience.NewCircuitBreaker(redisClient, &resilience.Config{
		Name:               "youtube-metadata",
		FailureThreshold:   cfg.BreakerFailureThreshold,
		SuccessThreshold:   cfg.BreakerSuccessThreshold,
		Timeout:            cfg.BreakerResetTimeout,
		MaxHalfOpenRequest: cfg.BreakerMaxHalfOpenReqs,
	})
	deps.RateLimiter = ratelimit.NewAPIProtector(redisClient, &ratelimit.Config{
		MaxConcurrent:     cfg.YouTubeBatchSize,
		RequestsPerSecond: cfg.YouTubeRequestsPerSecond,
		BurstSize:         cfg.YouTubeRequestsPerSecond / 2,
		DebounceDuration:  ratelimit.DefaultConfig().DebounceDuration,
	})

	deps.EnrichClient = enrich.NewClient(
		deps.MetadataCache,
		deps.Breaker,
		deps.RateLimiter,
		deps.Metadata,
		deps.VideoMetadata,
		cfg.YouTubeBatchSize,
		cfg.CacheMetadataTTL,
		logger.Default().WithField("component", "enrich"),
	)

	maxAttempts := map[domain.QueueName]int{
		domain.QueueEmailProcess: cfg.QueueEmailProcessAttempts,
		domain.QueueEnrich:       cfg.QueueEnrichAttempts,
		domain.QueueRankCompute:  cfg.QueueRankComputeAttempts,
	}
	deps.JobProducer = queue.NewProducer(redisClient, maxAttempts, logger.Default().WithField("component", "job_producer"))

	deps.EmailProcessor = process.NewEmailProcessor(
		deps.Emails,
		deps.Links,
		deps.Inbox,
		deps.EmailTx,
		deps.JobProducer,
		logger.Default().WithField("component", "email_processor"),
	)

	deps.Synchronizer = sync.NewSynchronizer(
		deps.Users,
		deps.Inbox,
		deps.JobProducer,
		logger.Default().WithField("component", "synchronizer"),
	)

	weights := rank.Weights{
		Sender:        cfg.RankingWeightSender,
		Thread:        cfg.RankingWeightThread,
		Freshness:     cfg.RankingWeightFreshness,
		Topic:         cfg.RankingWeightTopic,
		NoisePenalty:  cfg.RankingWeightNoisePenalty,
	}
	thresholds := rank.Thresholds{
		WatchNow: cfg.RankingWatchNowThreshold,
		Save:     cfg.RankingSaveThreshold,
	}
	deps.Ranker = rank.NewRanker(
		deps.Links,
		deps.Emails,
		deps.VideoMetadata,
		deps.SenderStats,
		deps.Users,
		deps.Rankings,
		weights,
		thresholds,
		cfg.RankingFreshnessHalfLifeDays,
		logger.Default().WithField("component", "ranker"),
	)

	deps.Harness = eval.NewHarness(deps.Rankings, deps.Feedback, deps.Links, logger.Default().WithField("component", "eval"))

	deps.JobHandler = queue.NewHandler(deps.EmailProcessor, deps.EnrichClient, deps.Ranker)

	deps.Dispatcher = queue.NewDispatcher(
		redisClient,
		deps.JobHandler,
		cfg.WorkerID,
		time.Duration(cfg.ConsumerPendingCheckSec)*time.Second,
		[]queue.QueueConfig{
			{Name: domain.QueueEmailProcess, Concurrency: cfg.QueueEmailProcessConcurrency, MaxAttempts: cfg.QueueEmailProcessAttempts, Backoff: cfg.QueueEmailProcessBackoff},
			{Name: domain.QueueEnrich, Concurrency: cfg.QueueEnrichConcurrency, MaxAttempts: cfg.QueueEnrichAttempts, Backoff: cfg.QueueEnrichBackoff, RatePerSecond: cfg.YouTubeRequestsPerSecond},
			{Name: domain.QueueRankCompute, Concurrency: cfg.QueueRankComputeConcurrency, MaxAttempts: cfg.QueueRankComputeAttempts, Backoff: cfg.QueueRankComputeBackoff},
		},
		logger.Default().WithField("component", "dispatcher"),
	)

	return deps, cleanup, nil
}
