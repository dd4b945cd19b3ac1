package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"priceoptool/pkg/domain"
)

// RedisStore keeps the session blob in Redis under the fixed storage key,
// for deployments where several consoles share one session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Save writes the session blob without TTL; the token-refresh loop keeps
// the credentials usable, logout removes them.
func (s *RedisStore) Save(user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, StorageKey, data, 0).Err(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load reads the session blob. A missing key means no stored session.
func (s *RedisStore) Load() (domain.User, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := s.client.Get(ctx, StorageKey).Bytes()
	if err == redis.Nil {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("read session: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return domain.User{}, false, fmt.Errorf("decode session: %w", err)
	}
	return user, true, nil
}

// Clear removes the session blob.
func (s *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, StorageKey).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
