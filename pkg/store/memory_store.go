package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore 内存记录存储实现（用于开发/测试）
// 存储序列化后的字节，与 Redis 实现保持相同的编解码语义
type MemoryStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryStore 创建内存记录存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) getKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

func (s *MemoryStore) Get(ctx context.Context, ns Namespace, key string, dest interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, exists := s.data[s.getKey(ns, key)]
	if !exists {
		return ErrNotFound
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return &DecodeError{Namespace: ns, Key: key, Err: err}
	}
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, ns Namespace, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store marshal error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.getKey(ns, key)] = data
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, ns Namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, s.getKey(ns, key))
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, ns Namespace) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nsPrefix := string(ns) + ":"
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, nsPrefix) {
			keys = append(keys, strings.TrimPrefix(k, nsPrefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// SetRaw 直接写入原始字节，测试坏记录时使用
func (s *MemoryStore) SetRaw(ns Namespace, key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.getKey(ns, key)] = raw
}
