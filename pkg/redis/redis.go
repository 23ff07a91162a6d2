// Package redis provides the Redis adapter and connection helpers used by
// the session store and user code.
package redis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sentinel errors.
var (
	ErrEmptyURL          = errors.New("redis: empty connection URL")
	ErrParseURL          = errors.New("redis: failed to parse connection URL")
	ErrConnectionFailed  = errors.New("redis: connection failed")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
	ErrNotConnected      = errors.New("redis: not connected")
	ErrAlreadyConnected  = errors.New("redis: already connected")
)

// Config holds Redis connection parameters.
type Config struct {
	// URL is a redis:// or rediss:// connection URL. Required.
	URL string `yaml:"url"`

	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`

	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 5
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 5 * time.Second
	}
}

// Open creates a Redis client with retrying connect and growing backoff.
func Open(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	if !strings.HasPrefix(cfg.URL, "redis://") && !strings.HasPrefix(cfg.URL, "rediss://") {
		return nil, ErrParseURL
	}
	cfg.applyDefaults()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrParseURL, err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.DialTimeout = cfg.DialTimeout

	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}
	return nil, ErrConnectionFailed
}

// Healthcheck returns a closure validating connectivity, compatible with
// health.CheckFunc.
func Healthcheck(client redis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return ErrHealthcheckFailed
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// Adapter is the Redis implementation of adapter.Adapter.
type Adapter struct {
	name string
	cfg  Config

	mu     sync.RWMutex
	client redis.UniversalClient
}

// NewAdapter creates a named Redis adapter. The name defaults to "redis".
func NewAdapter(name string, cfg Config) *Adapter {
	if name == "" {
		name = "redis"
	}
	return &Adapter{name: name, cfg: cfg}
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return a.name }

// Connect implements adapter.Adapter.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return ErrAlreadyConnected
	}
	client, err := Open(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

// Disconnect implements adapter.Adapter.
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// IsConnected implements adapter.Adapter.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil
}

// Healthcheck implements adapter.Adapter.
func (a *Adapter) Healthcheck(ctx context.Context) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()

	if client == nil {
		return ErrNotConnected
	}
	return Healthcheck(client)(ctx)
}

// Client returns the live client, or ErrNotConnected before Connect.
func (a *Adapter) Client() (redis.UniversalClient, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.client == nil {
		return nil, ErrNotConnected
	}
	return a.client, nil
}
