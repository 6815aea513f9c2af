package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps all mappings in one hash, field name to selector.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "listingpilot:field_mappings"
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Save(ctx context.Context, field, selector string) error {
	if err := validate(field, selector); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, field, selector).Err(); err != nil {
		return fmt.Errorf("save mapping %s: %w", field, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, field string) (string, bool, error) {
	if !ValidField(field) {
		return "", false, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	selector, err := s.client.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read mapping %s: %w", field, err)
	}
	return selector, true, nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]string, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	return all, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear mappings: %w", err)
	}
	return nil
}
