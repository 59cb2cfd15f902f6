package events

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultStreamMaxLen caps each topic stream (approximate trimming).
const DefaultStreamMaxLen = 100_000

// RedisStreamBroker appends messages to a Redis stream named after the topic.
type RedisStreamBroker struct {
	rdb    goredis.UniversalClient
	prefix string
	maxLen int64
}

// NewRedisStreamBroker creates a broker writing to streams "<prefix><topic>".
func NewRedisStreamBroker(rdb goredis.UniversalClient, prefix string) *RedisStreamBroker {
	return &RedisStreamBroker{rdb: rdb, prefix: prefix, maxLen: DefaultStreamMaxLen}
}

// StreamName returns the stream a topic is written to.
func (b *RedisStreamBroker) StreamName(topic string) string {
	return b.prefix + topic
}

// Send XADDs the message and returns the stream entry id.
func (b *RedisStreamBroker) Send(ctx context.Context, msg Message) (string, error) {
	id, err := b.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: b.StreamName(msg.Topic),
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{
			"message_id": msg.ID,
			"key":        msg.Key,
			"body":       string(msg.Body),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis xadd %s: %w", msg.Topic, err)
	}
	return id, nil
}
