// Package db provides the PostgreSQL adapter: a retrying pgx pool connect,
// goose migrations, and the Adapter implementation the server connects and
// disconnects around its lifecycle.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors.
var (
	ErrParseConfig       = errors.New("db: failed to parse database configuration")
	ErrConnectionFailed  = errors.New("db: failed to open database connection")
	ErrHealthcheckFailed = errors.New("db: healthcheck failed")
	ErrNotConnected      = errors.New("db: not connected")
	ErrAlreadyConnected  = errors.New("db: already connected")
	ErrSetDialect        = errors.New("db migrator: failed to set dialect")
	ErrApplyMigrations   = errors.New("db migrator: failed to apply migrations")
)

// Config holds PostgreSQL connection parameters.
type Config struct {
	// ConnectionString is a postgres:// URL. Required.
	ConnectionString string `yaml:"url"`

	// Pool sizing.
	MaxOpenConns int32 `yaml:"max_open_conns"`
	MinConns     int32 `yaml:"min_conns"`

	// Connection hygiene for pooled environments.
	HealthCheckPeriod time.Duration `yaml:"healthcheck_period"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime"`

	// Startup retry with linear backoff growth.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 5
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 10 * time.Minute
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 5 * time.Second
	}
}

// Connect establishes a connection pool, retrying with growing backoff to
// ride out transient startup races against the database container.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	cfg.applyDefaults()

	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrParseConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MinConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime

	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, ErrConnectionFailed
}

// Healthcheck returns a closure validating pool connectivity, compatible
// with health.CheckFunc.
func Healthcheck(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return ErrHealthcheckFailed
		}
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
