package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/egvia-interpret-server/internal/domain"
)

// CachingRetriever memoizes successful retrieval results. When a Redis URL
// is configured it is used as the shared cache; otherwise an in-process LRU
// stands in. Only clean results (no failures) are cached, and cache misses
// or cache errors fall through to the wrapped source. This is retrieval
// memoization only; no case history is persisted.
type CachingRetriever struct {
	inner  Retriever
	redis  *redis.Client
	lru    *lru.Cache[string, []byte]
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachingRetriever wraps a retriever with a Redis or LRU cache
func NewCachingRetriever(inner Retriever, config domain.CacheConfig, logger *logrus.Logger) (*CachingRetriever, error) {
	c := &CachingRetriever{
		inner:  inner,
		ttl:    config.DefaultTTL,
		logger: logger,
	}

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, falling back to in-process LRU cache")
		} else {
			c.redis = client
		}
	}

	if c.redis == nil {
		size := config.LRUSize
		if size <= 0 {
			size = 256
		}
		cache, err := lru.New[string, []byte](size)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU cache: %w", err)
		}
		c.lru = cache
	}

	return c, nil
}

// Name implements the Retriever interface
func (c *CachingRetriever) Name() string {
	return c.inner.Name()
}

// Queries implements the Retriever interface
func (c *CachingRetriever) Queries(req *domain.InterpretRequest) []string {
	return c.inner.Queries(req)
}

// Retrieve implements the Retriever interface
func (c *CachingRetriever) Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error) {
	key := c.cacheKey(req)

	if cached := c.get(ctx, key); cached != nil {
		var result RetrievalResult
		if err := json.Unmarshal(cached, &result); err == nil {
			c.logger.WithFields(logrus.Fields{
				"source": c.inner.Name(),
				"key":    key,
			}).Debug("Retrieval cache hit")
			return &result, nil
		}
	}

	result, err := c.inner.Retrieve(ctx, req)
	if err != nil || result == nil || len(result.Failures) > 0 {
		return result, err
	}

	if payload, marshalErr := json.Marshal(result); marshalErr == nil {
		c.put(ctx, key, payload)
	}
	return result, nil
}

func (c *CachingRetriever) cacheKey(req *domain.InterpretRequest) string {
	sum := sha256.Sum256([]byte(c.inner.Name() + "|" + strings.Join(c.inner.Queries(req), "|")))
	return fmt.Sprintf("egvia:retrieval:%x", sum)
}

func (c *CachingRetriever) get(ctx context.Context, key string) []byte {
	if c.redis != nil {
		payload, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			return payload
		}
		return nil
	}
	if payload, ok := c.lru.Get(key); ok {
		return payload
	}
	return nil
}

func (c *CachingRetriever) put(ctx context.Context, key string, payload []byte) {
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WithError(err).Debug("Failed to store retrieval result in Redis")
		}
		return
	}
	c.lru.Add(key, payload)
}
