package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/storage"
)

// DefaultCacheMaxBytes is the fast cache quota. FileCache counts it across
// every key in its directory; RedisCache counts it per key.
const DefaultCacheMaxBytes = 5 << 20

// Cache is the fast tier. Set fails with apperr.ErrQuotaExceeded when the
// value does not fit; Get fails with apperr.ErrNotFound for a missing key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// FileCache keeps each key in its own JSON file. All keys share one quota,
// the way a browser origin shares its local storage.
type FileCache struct {
	dir      *storage.Dir
	maxBytes int64
}

// NewFileCache stores keys as files in dir.
func NewFileCache(dir *storage.Dir, maxBytes int) *FileCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxBytes
	}
	return &FileCache{dir: dir, maxBytes: int64(maxBytes)}
}

func fileName(key string) string { return key + ".json" }

// Get implements Cache.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.dir.Read(fileName(key))
}

// Set implements Cache. The value replaces the key's previous file, so only
// the other keys count against the quota.
func (c *FileCache) Set(_ context.Context, key string, value []byte) error {
	others, err := c.dir.Size(fileName(key))
	if err != nil {
		return fmt.Errorf("file cache %s: %w", key, err)
	}
	if others+int64(len(value)) > c.maxBytes {
		return fmt.Errorf("file cache %s: %d bytes with %d in use: %w",
			key, len(value), others, apperr.ErrQuotaExceeded)
	}
	return c.dir.Write(fileName(key), value)
}

// Redis client timeouts. The context deadline of each call also applies.
const (
	redisDialTimeout  = 3 * time.Second
	redisReadTimeout  = 2 * time.Second
	redisWriteTimeout = 2 * time.Second
	redisPingTimeout  = 2 * time.Second
)

// NewRedisClient parses a redis:// URL into a client with bounded I/O and
// pings it once. A failed ping is returned alongside the usable client so
// the caller can decide whether to continue.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisReadTimeout
	opts.WriteTimeout = redisWriteTimeout
	opts.ContextTimeoutEnabled = true
	opts.DisableIdentity = true

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return client, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// RedisCache keeps keys in Redis under a prefix.
type RedisCache struct {
	client   *redis.Client
	prefix   string
	maxBytes int
}

// NewRedisCache wraps a connected client.
func NewRedisCache(client *redis.Client, prefix string, maxBytes int) *RedisCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxBytes
	}
	return &RedisCache{client: client, prefix: prefix, maxBytes: maxBytes}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis cache %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis cache %s: %w", key, err)
	}
	return b, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if len(value) > c.maxBytes {
		return fmt.Errorf("redis cache %s: %d bytes: %w", key, len(value), apperr.ErrQuotaExceeded)
	}
	if err := c.client.Set(ctx, c.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis cache %s: %w", key, err)
	}
	return nil
}
