package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	feedChannel = "storyline:feed"
	recentKey   = "storyline:feed:recent"

	// MaxRecent is how many events the backlog keeps.
	MaxRecent = 20
)

// RedisEventBroker implements EventBroker with Redis pub/sub and a capped list.
type RedisEventBroker struct {
	client *redis.Client
}

func NewRedisEventBroker(client *redis.Client) *RedisEventBroker {
	return &RedisEventBroker{client: client}
}

func (r *RedisEventBroker) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, recentKey, data)
		pipe.LTrim(ctx, recentKey, 0, MaxRecent-1)
		pipe.Publish(ctx, feedChannel, data)
		return nil
	})
	return err
}

func (r *RedisEventBroker) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	raw, err := r.client.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	// The list is newest first.
	events := make([]Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(raw[i]), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *RedisEventBroker) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := r.client.Subscribe(ctx, feedChannel)

	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan Event, 100)

	go func() {
		defer close(events)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.Log.Warn("Broker: dropping malformed event", zap.Error(err))
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

func (r *RedisEventBroker) Close() error {
	return r.client.Close()
}
