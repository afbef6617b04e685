package store

import (
	"context"
	"sync"
	"time"
)

// FakeKVStore 内存KV实现，供各包单元测试使用
type FakeKVStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewFakeKVStore() *FakeKVStore {
	return &FakeKVStore{data: make(map[string]string)}
}

func (f *FakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (f *FakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *FakeKVStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}
