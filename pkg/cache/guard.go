package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard provides set-if-absent markers for suppressing duplicate processing
// of external callbacks (gateway webhooks). A marker that already exists
// means the callback identity has been seen within the TTL window.
type Guard struct {
	client *redis.Client
}

func NewGuard(client *redis.Client) *Guard {
	return &Guard{client: client}
}

// AcquireOnce atomically claims the key. Returns true when this caller is the
// first holder, false when the key was already claimed.
func (g *Guard) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("guard setnx error: %w", err)
	}
	return ok, nil
}

// Release drops the marker so the identity can be processed again. Used on
// processing failure so a retried callback is not swallowed by its own guard.
func (g *Guard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("guard release error: %w", err)
	}
	return nil
}
