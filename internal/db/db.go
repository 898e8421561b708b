// Package db opens the service's backing stores.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DB bundles the optional backing connections. Either handle may be nil when
// the corresponding URL is not configured; callers degrade to in-memory
// behavior.
type DB struct {
	Postgres *sql.DB
	Redis    *redis.Client
}

// New opens and pings whichever backends are configured. An empty URL skips
// that backend entirely.
func New(postgresURL, redisURL string, log zerolog.Logger) (*DB, error) {
	d := &DB{}

	if postgresURL != "" {
		pg, err := sql.Open("postgres", postgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		pg.SetMaxOpenConns(25)
		pg.SetMaxIdleConns(5)
		pg.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pg.PingContext(ctx); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		cancel()

		log.Info().Msg("postgres connection established")
		d.Postgres = pg
	}

	if redisURL != "" {
		opts, err := redisOptions(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		cancel()

		log.Info().Msg("redis connection established")
		d.Redis = client
	}

	return d, nil
}

// redisOptions supports both "host:port" and "redis://..." URL formats.
func redisOptions(redisURL string) (*redis.Options, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		return redis.ParseURL(redisURL)
	}
	return &redis.Options{
		Addr:         redisURL,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}, nil
}

// Close releases both connections.
func (d *DB) Close() error {
	var firstErr error
	if d.Postgres != nil {
		if err := d.Postgres.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
