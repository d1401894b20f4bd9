package publish

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/ppiankov/factgate/internal/model"
)

// RedisPublisher publishes gate events on a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a Redis publisher for addr (host:port)
func NewRedisPublisher(addr, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, report *model.ReconciliationReport) error {
	data, err := NewGateEvent(report).Encode()
	if err != nil {
		return fmt.Errorf("encode gate event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
