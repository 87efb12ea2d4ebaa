package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/xdr-console/internal/console/session"
	"github.com/xela07ax/xdr-console/internal/infra"
)

// Storage — долговременное хранилище клиента в Redis.
// Несколько экземпляров демона на одной машине делят одну сессию.
type Storage struct {
	rdb *redis.Client
}

func NewStorage(rdb *redis.Client) *Storage {
	return &Storage{rdb: rdb}
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, infra.RedisStorageKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	// Без TTL: как localStorage, живет до явного удаления
	if err := s.rdb.Set(ctx, infra.RedisStorageKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, infra.RedisStorageKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Ping проверяет доступность Redis при старте
func (s *Storage) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
