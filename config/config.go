// Package config loads runtime configuration from the environment into a
// flat struct, the way the teacher's worker service does it: no config
// library, just os.Getenv with typed defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// generateWorkerID creates a unique worker ID from hostname and PID so that
// multiple processes on the same host don't collide in logs or job leases.
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Config holds the complete runtime configuration for the pipeline.
type Config struct {
	Environment string
	WorkerID    string

	// Database
	DatabaseURL string
	RedisURL    string

	// OAuth - Google (Gmail inbox access)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// YouTube Data API (metadata enrichment)
	YouTubeAPIKey            string
	YouTubeBatchSize         int
	YouTubeRequestsPerSecond int
	YouTubeQuotaUnitsPerDay  int
	YouTubeRequestTimeout    time.Duration

	// Circuit breaker (enrichment client)
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerResetTimeout     time.Duration
	BreakerMaxHalfOpenReqs  int

	// Ranking (weights sum to 1.0: sender/thread/freshness/topic/noise-penalty)
	RankingFreshnessHalfLifeDays float64
	RankingWatchNowThreshold     float64
	RankingSaveThreshold         float64
	RankingWeightSender          float64
	RankingWeightThread          float64
	RankingWeightFreshness       float64
	RankingWeightTopic           float64
	RankingWeightNoisePenalty    float64

	// Cache TTLs
	CacheMetadataTTL time.Duration
	CacheRankingTTL  time.Duration

	// Job queues: one pool per named queue, per spec.md §4.6
	QueueEmailProcessConcurrency int
	QueueEmailProcessAttempts    int
	QueueEmailProcessBackoff     time.Duration

	QueueEnrichConcurrency int
	QueueEnrichAttempts    int
	QueueEnrichBackoff     time.Duration

	QueueRankComputeConcurrency int
	QueueRankComputeAttempts    int
	QueueRankComputeBackoff     time.Duration

	// Worker pool scaling
	WorkerQueueSize     int
	WorkerScaleInterval time.Duration
	WorkerIdleTimeout   time.Duration

	// Consumer (Redis Stream)
	ConsumerBatchSize       int
	ConsumerBlockMS         int
	ConsumerPendingCheckSec int

	// Inbox sync
	SyncInitialLookbackDays int
	SyncMaxMessagesPerPoll  int

	// Evaluation harness
	EvalKValues []int
}

// Load reads configuration from the environment, applying spec defaults
// wherever a variable is unset.
func Load() (*Config, error) {
	return &Config{
		Environment: getEnv("ENV", "development"),
		WorkerID:    getEnv("WORKER_ID", generateWorkerID()),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		YouTubeAPIKey:            getEnv("YOUTUBE_API_KEY", ""),
		YouTubeBatchSize:         getEnvInt("YOUTUBE_BATCH_SIZE", 50),
		YouTubeRequestsPerSecond: getEnvInt("YOUTUBE_REQUESTS_PER_SECOND", 10),
		YouTubeQuotaUnitsPerDay:  getEnvInt("YOUTUBE_QUOTA_UNITS_PER_DAY", 10000),
		YouTubeRequestTimeout:    time.Duration(getEnvInt("YOUTUBE_REQUEST_TIMEOUT_SEC", 10)) * time.Second,

		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerSuccessThreshold: getEnvInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerResetTimeout:     time.Duration(getEnvInt("BREAKER_RESET_TIMEOUT_SEC", 60)) * time.Second,
		BreakerMaxHalfOpenReqs:  getEnvInt("BREAKER_MAX_HALF_OPEN_REQUESTS", 1),

		RankingFreshnessHalfLifeDays: getEnvFloat("RANKING_FRESHNESS_HALF_LIFE_DAYS", 30),
		RankingWatchNowThreshold:     getEnvFloat("RANKING_WATCH_NOW_THRESHOLD", 0.7),
		RankingSaveThreshold:         getEnvFloat("RANKING_SAVE_THRESHOLD", 0.4),
		RankingWeightSender:          getEnvFloat("RANKING_WEIGHT_SENDER", 0.3),
		RankingWeightThread:          getEnvFloat("RANKING_WEIGHT_THREAD", 0.2),
		RankingWeightFreshness:       getEnvFloat("RANKING_WEIGHT_FRESHNESS", 0.2),
		RankingWeightTopic:           getEnvFloat("RANKING_WEIGHT_TOPIC", 0.2),
		RankingWeightNoisePenalty:    getEnvFloat("RANKING_WEIGHT_NOISE_PENALTY", 0.1),

		CacheMetadataTTL: time.Duration(getEnvInt("CACHE_METADATA_TTL_MIN", 10080)) * time.Minute,
		CacheRankingTTL:  time.Duration(getEnvInt("CACHE_RANKING_TTL_MIN", 30)) * time.Minute,

		QueueEmailProcessConcurrency: getEnvInt("QUEUE_EMAIL_PROCESS_CONCURRENCY", 5),
		QueueEmailProcessAttempts:    getEnvInt("QUEUE_EMAIL_PROCESS_ATTEMPTS", 3),
		QueueEmailProcessBackoff:     time.Duration(getEnvInt("QUEUE_EMAIL_PROCESS_BACKOFF_SEC", 2)) * time.Second,

		QueueEnrichConcurrency: getEnvInt("QUEUE_ENRICH_CONCURRENCY", 3),
		QueueEnrichAttempts:    getEnvInt("QUEUE_ENRICH_ATTEMPTS", 3),
		QueueEnrichBackoff:     time.Duration(getEnvInt("QUEUE_ENRICH_BACKOFF_SEC", 2)) * time.Second,

		QueueRankComputeConcurrency: getEnvInt("QUEUE_RANK_COMPUTE_CONCURRENCY", 1),
		QueueRankComputeAttempts:    getEnvInt("QUEUE_RANK_COMPUTE_ATTEMPTS", 3),
		QueueRankComputeBackoff:     time.Duration(getEnvInt("QUEUE_RANK_COMPUTE_BACKOFF_SEC", 2)) * time.Second,

		WorkerQueueSize:     getEnvInt("WORKER_QUEUE_SIZE", 1000),
		WorkerScaleInterval: time.Duration(getEnvInt("WORKER_SCALE_INTERVAL_SEC", 10)) * time.Second,
		WorkerIdleTimeout:   time.Duration(getEnvInt("WORKER_IDLE_TIMEOUT_SEC", 30)) * time.Second,

		ConsumerBatchSize:       getEnvInt("CONSUMER_BATCH_SIZE", 50),
		ConsumerBlockMS:         getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 60),

		SyncInitialLookbackDays: getEnvInt("SYNC_INITIAL_LOOKBACK_DAYS", 30),
		SyncMaxMessagesPerPoll:  getEnvInt("SYNC_MAX_MESSAGES_PER_POLL", 500),

		EvalKValues: getEnvIntSlice("EVAL_K_VALUES", []int{5, 10, 20}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvIntSlice(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []int
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			if i > start {
				if n, err := strconv.Atoi(value[start:i]); err == nil {
					result = append(result, n)
				}
			}
			start = i + 1
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
