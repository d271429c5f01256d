package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/family-calendar/internal/application"
)

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes event changes as JSON on a Redis channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// PublishChange implements application.ChangePublisher.
func (p *RedisPublisher) PublishChange(ctx context.Context, change application.Change) error {
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

func encodeChange(change application.Change) ([]byte, error) {
	change.At = change.At.UTC().Truncate(time.Millisecond)
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change: %w", err)
	}
	return payload, nil
}

const idempotencyKeyPrefix = "famcal:idempotency:"

// RedisIdempotencyStore shares idempotency keys between processes.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
}

func NewRedisIdempotencyStore(client redis.UniversalClient) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func idempotencyKey(key string) string {
	return idempotencyKeyPrefix + key
}

// Claim implements application.IdempotencyStore with SETNX.
func (s *RedisIdempotencyStore) Claim(ctx context.Context, key string, rec application.IdempotencyRecord, ttl time.Duration) (application.IdempotencyRecord, bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return application.IdempotencyRecord{}, false, err
	}

	// The stored record can expire between SETNX and GET; one retry covers it.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, idempotencyKey(key), payload, ttl).Result()
		if err != nil {
			return application.IdempotencyRecord{}, false, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if ok {
			return rec, true, nil
		}

		raw, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return application.IdempotencyRecord{}, false, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		var stored application.IdempotencyRecord
		if err := json.Unmarshal(raw, &stored); err != nil {
			return application.IdempotencyRecord{}, false, fmt.Errorf("corrupt idempotency record: %w", err)
		}
		return stored, false, nil
	}
	return application.IdempotencyRecord{}, false, fmt.Errorf("idempotency key %q kept expiring during claim", key)
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, rec application.IdempotencyRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKey(key), payload, ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKey(key)).Err()
}
