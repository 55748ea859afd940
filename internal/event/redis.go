package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher pushes events to a redis pub/sub channel as JSON for
// out-of-process consumers (dashboards, animation sequencers).
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.SugaredLogger
}

func NewRedisPublisher(client redis.UniversalClient, channel string, logger *zap.SugaredLogger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Channel returns the per-member channel; consumers may PSUBSCRIBE "<channel>:*".
func (p *RedisPublisher) Channel(userID string) string {
	return p.channel + ":" + userID
}

func (p *RedisPublisher) Notify(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Warnw("encode event", "type", e.Type, "err", err)
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.client.Publish(pctx, p.Channel(e.UserID), payload).Err(); err != nil {
		p.logger.Warnw("publish event", "type", e.Type, "user_id", e.UserID, "err", err)
	}
}
