package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stock-tracker-go/market"
)

// Redis publishes updates as JSON on a pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
	// OnDecodeError is called for messages that are not valid updates; optional.
	OnDecodeError func(error)
}

func NewRedis(ctx context.Context, addr, password string, db int, channel string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisWithClient(client, channel), nil
}

func NewRedisWithClient(client *redis.Client, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, u market.Update) error {
	data, err := Encode(u)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish update: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (<-chan market.Update, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	// 等待订阅确认，避免丢失紧随其后的消息
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe %s: %w", r.channel, err)
	}

	out := make(chan market.Update, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				u, err := Decode([]byte(msg.Payload))
				if err != nil {
					if r.OnDecodeError != nil {
						r.OnDecodeError(err)
					}
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func Encode(u market.Update) ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal update: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (market.Update, error) {
	var u market.Update
	if err := json.Unmarshal(data, &u); err != nil {
		return u, fmt.Errorf("failed to unmarshal update: %w", err)
	}
	if u.UpdateType != market.Live && u.UpdateType != market.Closed {
		return u, fmt.Errorf("unknown update type %q", u.UpdateType)
	}
	return u, nil
}
