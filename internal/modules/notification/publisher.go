// README: Live push of notifications over Redis pub/sub (one channel per user).
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"staybook/internal/types"
)

const channelPrefix = "notifications:%s"

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

// Publish pushes n to the user's channel. Zero subscribers is not an error.
func (p *RedisPublisher) Publish(ctx context.Context, n *Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.redis.Publish(ctx, Channel(n.UserID), raw).Err()
}

// Channel is the pub/sub channel a live connection for userID subscribes to.
func Channel(userID types.ID) string {
	return fmt.Sprintf(channelPrefix, string(userID))
}
