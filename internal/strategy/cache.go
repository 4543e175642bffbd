package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mindpal/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the small key/value surface CachedSelector needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix and reports how many.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis parses a redis:// URL and checks the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		deleted += int(n)
		batch = batch[:0]
		return err
	}

	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

const defaultKeyPrefix = "mindpal:strategies:"

// Invalidate drops every strategy list cached under the default prefix. Call
// it after the catalog changes.
func Invalidate(ctx context.Context, cache Cache) (int, error) {
	return cache.DeletePrefix(ctx, defaultKeyPrefix)
}

// CachedSelector is a read-through cache in front of another Selector.
// Cache failures are logged and never fail the lookup.
type CachedSelector struct {
	next   Selector
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedSelector(next Selector, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedSelector {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSelector{next: next, cache: cache, ttl: ttl, prefix: defaultKeyPrefix, logger: logger}
}

func (s *CachedSelector) Invalidate(ctx context.Context) (int, error) {
	return s.cache.DeletePrefix(ctx, s.prefix)
}

func (s *CachedSelector) key(label string) string {
	return s.prefix + strings.ToLower(strings.TrimSpace(label))
}

func (s *CachedSelector) ForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error) {
	key := s.key(label)
	raw, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var out []domain.CopingStrategy
		jsonErr := json.Unmarshal([]byte(raw), &out)
		if jsonErr == nil {
			return out, nil
		}
		s.logger.Warn("strategy cache entry unreadable", "key", key, "error", jsonErr)
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("strategy cache get failed", "key", key, "error", err)
	}

	out, err := s.next.ForEmotion(ctx, label)
	if err != nil {
		return nil, err
	}
	if buf, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, string(buf), s.ttl); err != nil {
			s.logger.Warn("strategy cache set failed", "key", key, "error", err)
		}
	}
	return out, nil
}
