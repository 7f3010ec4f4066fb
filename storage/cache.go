package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/petabite/shiptivitas-2/domain"
)

type backend interface {
	ListClients(ctx context.Context, filter domain.Status) ([]domain.Client, error)
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	RunInTransaction(ctx context.Context, fn func(domain.Tx) error) error
	Ping(ctx context.Context) error
}

// Cache wraps a store with Redis-backed caching for client listings.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListClients(ctx context.Context, filter domain.Status) ([]domain.Client, error) {
	if clients, ok := c.load(ctx, filter); ok {
		return clients, nil
	}

	gen := c.generation(ctx)
	clients, err := c.base.ListClients(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.store(ctx, filter, clients, gen)
	return clients, nil
}

func (c *Cache) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	return c.base.GetClient(ctx, id)
}

// RunInTransaction delegates to the backing store and drops every cached
// listing once the transaction has committed.
func (c *Cache) RunInTransaction(ctx context.Context, fn func(domain.Tx) error) error {
	if err := c.base.RunInTransaction(ctx, fn); err != nil {
		return err
	}

	c.evict(ctx)
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) load(ctx context.Context, filter domain.Status) ([]domain.Client, bool) {
	if c.redis == nil {
		return nil, false
	}
	key := clientsCacheKey(filter)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).WithField("key", key).Warn("clients cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var clients []domain.Client
	if err := sonic.Unmarshal(data, &clients); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return clients, true
}

// generation returns the eviction counter, or -1 when it cannot be read.
func (c *Cache) generation(ctx context.Context) int64 {
	if c.redis == nil {
		return -1
	}
	gen, err := c.redis.Get(ctx, clientsGenerationKey).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		return -1
	}
	return gen
}

// store writes a listing only while the eviction counter still equals gen, so
// a listing read before a commit is never cached after that commit's evict.
func (c *Cache) store(ctx context.Context, filter domain.Status, clients []domain.Client, gen int64) {
	if c.redis == nil || c.ttl == 0 || gen < 0 {
		return
	}
	data, err := sonic.Marshal(clients)
	if err != nil {
		return
	}
	key := clientsCacheKey(filter)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, clientsGenerationKey).Int64()
		if err == redis.Nil {
			cur = 0
		} else if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, clientsGenerationKey)
	if err != nil && err != redis.TxFailedErr {
		log.WithError(err).WithField("key", key).Warn("clients cache write failed")
	}
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	keys := []string{clientsCacheKey("")}
	for _, s := range domain.Statuses {
		keys = append(keys, clientsCacheKey(s))
	}
	if _, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, clientsGenerationKey)
		pipe.Del(ctx, keys...)
		return nil
	}); err != nil {
		log.WithError(err).Warn("clients cache eviction failed")
	}
}

const clientsGenerationKey = "clients:generation"

func clientsCacheKey(filter domain.Status) string {
	if filter == "" {
		return "clients:all"
	}
	return "clients:status:" + string(filter)
}
