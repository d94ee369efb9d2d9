package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/metrics"
	"github.com/waapdemo/sui-demo-backend/pkg/kv"
	_ "github.com/waapdemo/sui-demo-backend/pkg/kv/memory"
	rediskv "github.com/waapdemo/sui-demo-backend/pkg/kv/redis"
)

var ErrCacheMiss = errors.New("cache miss")

// Key prefixes
const (
	KeyBalances   = "waap:balances"
	KeyRemembered = "waap:session:remembered"

	ChannelStatus   = "waap:status"
	ChannelBalances = "waap:balances:updates"
)

// Cache couples the kv.Store with a pub/sub bus. With Redis both go through
// the same client; otherwise the store is in-memory and so is the bus.
type Cache struct {
	kvStore   kv.Store
	client    *redis.Client
	pubsubHub *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewCache(cfg kv.Config, logger *zap.SugaredLogger, m *metrics.Metrics) (*Cache, error) {
	if cfg.Logger == nil && logger != nil {
		cfg.Logger = logger.Warnw
	}
	store, err := kv.NewStoreFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kv store: %w", err)
	}
	return newCache(store, logger, m), nil
}

// NewInMemoryCache is the Redis-free cache used by tests and local runs.
func NewInMemoryCache(logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	c, err := NewCache(kv.Config{Backend: kv.BackendMemory}, logger, m)
	if err != nil {
		// The memory backend is registered by this package's import.
		panic(err)
	}
	return c
}

func newCache(store kv.Store, logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	c := &Cache{kvStore: store, logger: logger, metrics: m}
	if rs, ok := store.(*rediskv.Store); ok {
		c.client = rs.Client()
	} else {
		c.pubsubHub = NewPubSubHub()
		if logger != nil {
			logger.Infow("Using in-memory cache and pubsub")
		}
	}
	return c
}

// KV exposes the raw store for packages that keep their own key layout.
func (c *Cache) KV() kv.Store {
	return c.kvStore
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			if c.metrics != nil {
				c.metrics.RecordCacheMiss(ctx, key)
			}
			return ErrCacheMiss
		}
		if c.logger != nil {
			c.logger.Errorw("Cache get error", "key", key, "error", err)
		}
		return fmt.Errorf("cache get error: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit(ctx, key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.kvStore.Set(ctx, key, data, ttl); err != nil {
		if c.logger != nil {
			c.logger.Errorw("Cache set error", "key", key, "error", err)
		}
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := c.kvStore.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *Cache) GetBalances(ctx context.Context, network, address string, dest interface{}) error {
	return c.Get(ctx, fmt.Sprintf("%s:%s:%s", KeyBalances, network, address), dest)
}

func (c *Cache) SetBalances(ctx context.Context, network, address string, value interface{}) error {
	return c.Set(ctx, fmt.Sprintf("%s:%s:%s", KeyBalances, network, address), value, 5*time.Second)
}

func (c *Cache) InvalidateBalances(ctx context.Context, network, address string) error {
	return c.Delete(ctx, fmt.Sprintf("%s:%s:%s", KeyBalances, network, address))
}

func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}

	if c.client != nil {
		if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Publish error", "channel", channel, "error", err)
			}
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}

	c.pubsubHub.Publish(channel, string(data))
	return nil
}

func (c *Cache) Subscribe(ctx context.Context, channels ...string) Subscription {
	if c.client != nil {
		return newRedisSubscription(ctx, c.client.Subscribe(ctx, channels...))
	}
	return c.pubsubHub.Subscribe(ctx, channels...)
}

func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.kvStore.Ping(ctx)
}

func (c *Cache) Close() error {
	return c.kvStore.Close()
}
