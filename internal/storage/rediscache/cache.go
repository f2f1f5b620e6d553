// Package rediscache caches the task list in Redis in front of a Store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tasks/internal/config"
	"tasks/internal/models"
)

// Keys share a hash tag so a cluster keeps them in one slot.
const (
	// ListKey holds the serialized task list.
	ListKey = "{tasks}:list"
	// GenerationKey is bumped by every successful mutation. A list loaded
	// from the store is cached only if the generation did not move meanwhile.
	GenerationKey = "{tasks}:list:gen"
)

// Store is the persistence layer being cached.
type Store interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, content string) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, done bool) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) (models.Task, error)
	Ping(ctx context.Context) error
}

// errStale reports that a mutation happened while the list was loading.
var errStale = errors.New("task list changed while loading")

// kv is the subset of Redis the cache needs.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) error
	Generation(ctx context.Context, key string) (int64, error)
	// SetIfGeneration writes key only while genKey still holds gen, and
	// returns errStale otherwise.
	SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) error
}

// CachedStore serves ListTasks from Redis and drops the cached list after
// every successful mutation. Redis failures are logged and the call falls
// through to the underlying store.
type CachedStore struct {
	store  Store
	cache  kv
	ttl    time.Duration
	logger *zap.Logger
	closer func() error
}

// New connects to Redis and wraps store.
func New(store Store, cfg config.RedisConfig, logger *zap.Logger) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewWithClient(store, client, cfg.TTL, logger)
	c.closer = client.Close
	return c, nil
}

// NewWithClient wraps store with an existing Redis client. The caller keeps
// ownership of the client.
func NewWithClient(store Store, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return newCachedStore(store, redisKV{client: client}, ttl, logger)
}

func newCachedStore(store Store, cache kv, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Close releases the Redis client if this cache created it.
func (c *CachedStore) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Ping checks the underlying store only; the cache is optional.
func (c *CachedStore) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// ListTasks returns the cached list when present. Otherwise it loads the
// list from the store and caches it, unless a mutation landed in between.
func (c *CachedStore) ListTasks(ctx context.Context) ([]models.Task, error) {
	data, ok, err := c.cache.Get(ctx, ListKey)
	switch {
	case err != nil:
		c.logger.Warn("Failed to read task list from cache", zap.Error(err))
	case ok:
		var tasks []models.Task
		if err := json.Unmarshal(data, &tasks); err == nil {
			c.logger.Debug("Cache hit for task list", zap.Int("count", len(tasks)))
			return tasks, nil
		}
		c.logger.Warn("Discarding corrupted task list cache entry")
		c.invalidate(ctx)
	default:
		c.logger.Debug("Cache miss for task list")
	}

	// Read the generation before the store so a mutation that commits
	// during the load makes the write below a no-op.
	gen, genErr := c.cache.Generation(ctx, GenerationKey)
	if genErr != nil {
		c.logger.Warn("Failed to read task list generation", zap.Error(genErr))
	}

	tasks, err := c.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return tasks, nil
	}

	data, err = json.Marshal(tasks)
	if err != nil {
		return tasks, nil
	}
	switch err := c.cache.SetIfGeneration(ctx, ListKey, data, c.ttl, GenerationKey, gen); {
	case errors.Is(err, errStale):
		c.logger.Debug("Skipped caching task list loaded before a mutation")
	case err != nil:
		c.logger.Warn("Failed to cache task list", zap.Error(err))
	}
	return tasks, nil
}

// CreateTask delegates to the store and invalidates the list on success.
func (c *CachedStore) CreateTask(ctx context.Context, content string) (models.Task, error) {
	task, err := c.store.CreateTask(ctx, content)
	if err != nil {
		return models.Task{}, err
	}
	c.mutated(ctx)
	return task, nil
}

// UpdateTask delegates to the store and invalidates the list on success.
func (c *CachedStore) UpdateTask(ctx context.Context, id int64, done bool) (models.Task, error) {
	task, err := c.store.UpdateTask(ctx, id, done)
	if err != nil {
		return models.Task{}, err
	}
	c.mutated(ctx)
	return task, nil
}

// DeleteTask delegates to the store and invalidates the list on success.
func (c *CachedStore) DeleteTask(ctx context.Context, id int64) (models.Task, error) {
	task, err := c.store.DeleteTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	c.mutated(ctx)
	return task, nil
}

// mutated bumps the generation before dropping the list, so no load that
// started earlier can cache its result afterwards.
func (c *CachedStore) mutated(ctx context.Context) {
	if err := c.cache.Incr(ctx, GenerationKey); err != nil {
		c.logger.Warn("Failed to bump task list generation", zap.Error(err))
	}
	c.invalidate(ctx)
}

func (c *CachedStore) invalidate(ctx context.Context) {
	if err := c.cache.Del(ctx, ListKey); err != nil {
		c.logger.Warn("Failed to invalidate task list cache", zap.Error(err))
	}
}

type redisKV struct {
	client redis.UniversalClient
}

func (r redisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r redisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r redisKV) Incr(ctx context.Context, key string) error {
	return r.client.Incr(ctx, key).Err()
}

func (r redisKV) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r redisKV) SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return errStale
	}
	return err
}
