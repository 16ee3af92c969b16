package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Goden-Gun/ezadmin/pkg/config"
)

const redisPingTimeout = 5 * time.Second

// InitRedis 创建共享 Redis 客户端：权限缓存、刷新令牌记录与会话版本共用
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Db,
		// 超时与请求 context 叠加，取较早者
		ContextTimeoutEnabled: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.WithFields(log.Fields{"addr": cfg.Addr, "db": cfg.Db}).Info("redis connected")
	return client, nil
}
