package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 10 * time.Minute

// Cache provides Redis-backed question batch caching to offload generator
// calls for repeat solo sessions.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ BatchCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(req BatchRequest) string {
	return strings.Join([]string{
		"questionbatch",
		req.GameType,
		req.Difficulty,
		fmt.Sprint(req.Rounds),
		req.Language,
		req.Topic,
	}, ":")
}

func (c *Cache) Get(ctx context.Context, req BatchRequest) (*Batch, error) {
	data, err := c.client.Get(ctx, c.key(req)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (c *Cache) Set(ctx context.Context, req BatchRequest, batch Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(req), data, c.ttl).Err()
}
