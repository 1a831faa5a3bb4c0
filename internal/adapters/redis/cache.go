package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/usherhq/invitation-core/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// GetLink returns a cached lookup response, or nil on a miss.
func (c *Cache) GetLink(ctx context.Context, code string) (*domain.InvitationPayload, error) {
	val, err := c.client.Get(ctx, "link:"+code).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload domain.InvitationPayload
	if err := json.Unmarshal(val, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Cache) SetLink(ctx context.Context, code string, payload domain.InvitationPayload, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "link:"+code, data, ttl).Err()
}
