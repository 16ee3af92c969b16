package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// SessionVersionStore 会话版本存储接口
// Redis 中每用户仅存储一个 key: auth:session:ver:{user_id}
// access token 携带签发时的版本号，版本号递增后旧 token 全部失效。
type SessionVersionStore interface {
	// Current 获取当前版本号（签发与验证时调用），不存在时为 0
	Current(ctx context.Context, userID int64) (int64, error)
	// Bump 递增版本号并返回新版本（强制下线时调用）
	Bump(ctx context.Context, userID int64) (int64, error)
}

// RedisSessionVersionStore 基于 INCR 的实现
type RedisSessionVersionStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisSessionVersionStore(client redis.Cmdable, prefix string) *RedisSessionVersionStore {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultSessionVersionPrefix
	}
	return &RedisSessionVersionStore{client: client, prefix: prefix}
}

func (s *RedisSessionVersionStore) Current(ctx context.Context, userID int64) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("session version store not configured")
	}
	v, err := s.client.Get(ctx, s.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (s *RedisSessionVersionStore) Bump(ctx context.Context, userID int64) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("session version store not configured")
	}
	return s.client.Incr(ctx, s.key(userID)).Result()
}

func (s *RedisSessionVersionStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}
