package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whosehouse/internal/config"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("key not found")

// KVStore 抽象的本地持久KV存储（用于在单元测试中替换Redis）
// 承载应用本地状态：离线消息队列、通知偏好缓存、推送Token
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisKVStore 基于go-redis的KV实现
type RedisKVStore struct {
	client *redis.Client
}

// NewRedisClient 创建Redis客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys 本地存储键构建器，统一前缀命名空间

// OutboxKey 某用户的离线消息队列键
func OutboxKey(prefix, userID string) string {
	return fmt.Sprintf("%s:outbox:%s", prefix, userID)
}

// PreferencesKey 某用户的通知偏好缓存键
func PreferencesKey(prefix, userID string) string {
	return fmt.Sprintf("%s:prefs:%s", prefix, userID)
}

// PushTokenKey 进程级推送Token缓存键
func PushTokenKey(prefix string) string {
	return fmt.Sprintf("%s:push_token", prefix)
}
