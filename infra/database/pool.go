// Package database builds the pgx connection pool and Redis client this
// pipeline shares across every repository adapter, queue, cache, and rate
// limiter — one pool, one client, constructed once in the composition
// root (internal/bootstrap).
package database

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// NewPostgres connects to databaseURL and verifies it with a ping before
// returning. Pool sizing is fixed for this workload (a handful of queue
// consumers plus the sync scheduler, not a web server's request fan-in)
// and only the ceiling is tunable, via DB_MAX_CONNS.
func NewPostgres(databaseURL string) (*pgxpool.Pool, error) {
	maxConns := int32(25)
	if envMax := os.Getenv("DB_MAX_CONNS"); envMax != "" {
		if v, err := strconv.Atoi(envMax); err == nil {
			maxConns = int32(v)
		}
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.MaxConns = maxConns
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	// The simple protocol avoids pgx's server-side prepared statement
	// cache, which this pool's query set is small enough not to need.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	return pool, nil
}

// NewRedis connects to redisURL and verifies it with a ping. The same
// client backs the metadata cache, the circuit breaker's shared state,
// the rate limiter's token buckets, and the job queue's streams.
func NewRedis(redisURL string) (*redis.Client, error) {
	poolSize := 50
	if envPool := os.Getenv("REDIS_POOL_SIZE"); envPool != "" {
		if v, err := strconv.Atoi(envPool); err == nil {
			poolSize = v
		}
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	opt.PoolSize = poolSize
	opt.MinIdleConns = 10
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
