package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ResultCache stores final execution results keyed by program identity.
// Misses and write failures are never fatal to an execution.
type ResultCache interface {
	Get(ctx context.Context, key string) (*ExecutionResult, bool)
	Set(ctx context.Context, key string, result *ExecutionResult)
}

// RedisCache implements ResultCache on a Redis string keyspace.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ ResultCache = (*RedisCache)(nil)

// NewRedisCache connects to addr and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: rdb, prefix: "judge:result:", ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*ExecutionResult, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("result cache read failed")
		}
		return nil, false
	}

	var result ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn().Err(err).Msg("discarding malformed cache entry")
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *ExecutionResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("result cache write failed")
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CodeHash returns the hex sha256 of a submission.
func CodeHash(code string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(code)))
}

// cacheKey identifies a program run by language, source and stdin.
func cacheKey(language, code, stdin string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(code))
	h.Write([]byte{0})
	h.Write([]byte(stdin))
	return fmt.Sprintf("%x", h.Sum(nil))
}
