package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// RedisSubscriber publishes each event as JSON on a redis pub/sub channel.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
}

// RedisOptions holds the connection settings for NewRedisSubscriber.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisSubscriber connects to redis and verifies the connection.
func NewRedisSubscriber(ctx context.Context, opts RedisOptions) (*RedisSubscriber, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisSubscriberWithClient(client, opts.Channel), nil
}

// NewRedisSubscriberWithClient publishes through an existing client.
func NewRedisSubscriberWithClient(client *redis.Client, channel string) *RedisSubscriber {
	if channel == "" {
		channel = "ultimabot:events"
	}
	return &RedisSubscriber{client: client, channel: channel}
}

// Name returns the subscriber name.
func (r *RedisSubscriber) Name() string {
	return "redis"
}

// Send publishes the event.
func (r *RedisSubscriber) Send(ctx context.Context, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling redis payload: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", r.channel, err)
	}
	return nil
}

// Close closes the redis client.
func (r *RedisSubscriber) Close() error {
	return r.client.Close()
}
