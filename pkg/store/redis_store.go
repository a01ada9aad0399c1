package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront/internal/pkg/config"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 记录存储实现
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 记录存储
func NewRedisStore(client *redis.Client) Store {
	prefix := "storefront:"
	if config.GlobalConfig.Server.Mode == "test" {
		prefix = "test:" + prefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// getKey 获取完整的存储键
func (s *RedisStore) getKey(ns Namespace, key string) string {
	return s.prefix + string(ns) + ":" + key
}

// Get 读取记录
func (s *RedisStore) Get(ctx context.Context, ns Namespace, key string, dest interface{}) error {
	fullKey := s.getKey(ns, key)
	val, err := s.client.Get(ctx, fullKey).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("store get error: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return &DecodeError{Namespace: ns, Key: key, Err: err}
	}

	return nil
}

// Set 写入记录 (无过期：记录是持久数据，不是缓存)
func (s *RedisStore) Set(ctx context.Context, ns Namespace, key string, value interface{}) error {
	fullKey := s.getKey(ns, key)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store marshal error: %w", err)
	}

	if err := s.client.Set(ctx, fullKey, data, 0).Err(); err != nil {
		return fmt.Errorf("store set error: %w", err)
	}

	return nil
}

// Remove 删除记录
func (s *RedisStore) Remove(ctx context.Context, ns Namespace, key string) error {
	return s.client.Del(ctx, s.getKey(ns, key)).Err()
}

// Keys 枚举命名空间下的所有 key
func (s *RedisStore) Keys(ctx context.Context, ns Namespace) ([]string, error) {
	nsPrefix := s.prefix + string(ns) + ":"
	fullKeys, err := s.client.Keys(ctx, nsPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("store keys error: %w", err)
	}

	keys := make([]string, 0, len(fullKeys))
	for _, k := range fullKeys {
		keys = append(keys, strings.TrimPrefix(k, nsPrefix))
	}
	return keys, nil
}
