package iam

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Goden-Gun/ezadmin/pkg/auth"
	"github.com/Goden-Gun/ezadmin/pkg/config"
	"github.com/Goden-Gun/ezadmin/pkg/events"
	"github.com/Goden-Gun/ezadmin/pkg/permcache"
	"github.com/Goden-Gun/ezadmin/pkg/rpc"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

// Service groups the collaborators behind the iam-service routes.
type Service struct {
	Issuer     *auth.Issuer
	Sync       *permcache.Synchronizer
	Dispatcher *events.Dispatcher
}

// TokenSettings maps the token section onto auth.Config.
func TokenSettings(cfg config.TokenConfig) auth.Config {
	return auth.Config{
		Secret:             cfg.SecretKey,
		Issuer:             cfg.Issuer,
		AccessTTL:          cfg.AccessTokenTTL.Duration(),
		RefreshTTL:         cfg.RefreshTokenTTL.Duration(),
		MaxSessionLifetime: cfg.MaxSessionLifetime.Duration(),
		ClockSkew:          cfg.ClockSkew.Duration(),
	}
}

// NewSystemClient builds the breaker-guarded system-service client.
func NewSystemClient(rc config.RPCClientConfig, bc config.BreakerConfig) *systemapi.ResilientClient {
	transport := rpc.New(rpc.Options{
		Service:              "system-service",
		BaseURL:              rc.BaseURL,
		ConnectTimeout:       rc.ConnectTimeout.Duration(),
		ReadTimeout:          rc.ReadTimeout.Duration(),
		MaxAttempts:          uint(max(rc.MaxAttempts, 1)),
		RetryInitialInterval: time.Duration(rc.RetryIntervalMillis) * time.Millisecond,
	})
	br := systemapi.NewBreaker(systemapi.BreakerOptions{
		ErrorThreshold:   bc.ErrorThreshold,
		SuccessThreshold: bc.SuccessThreshold,
		Timeout:          bc.Timeout.Duration(),
	})
	return systemapi.NewResilientClient(systemapi.NewHTTPClient(transport), systemapi.Fallback, br)
}

// NewService wires the permission cache, the issuer and the event
// dispatcher over one Redis client.
func NewService(cfg *config.IAMServiceConfig, rdb redis.Cmdable, users systemapi.Client) (*Service, error) {
	cache := permcache.NewCache(permcache.NewRedisStore(rdb), permcache.Options{
		Prefix:  cfg.Cache.Prefix,
		RoleTTL: cfg.Cache.RoleTTL.Duration(),
		UserTTL: cfg.Cache.UserTTL.Duration(),
	})
	sync := permcache.NewSynchronizer(users, cache)

	tokenCfg := TokenSettings(cfg.Token)
	tokenCfg.Defaults()
	issuer, err := auth.NewIssuer(tokenCfg, auth.Deps{
		Users:     users,
		Refresh:   auth.NewRedisRefreshStore(rdb, tokenCfg.RefreshStorePrefix),
		Blocklist: auth.NewRedisAccessBlocklist(rdb, tokenCfg.BlocklistPrefix),
		Versions:  auth.NewRedisSessionVersionStore(rdb, tokenCfg.SessionVersionPrefix),
		Loader:    sync,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		Issuer:     issuer,
		Sync:       sync,
		Dispatcher: &events.Dispatcher{Cache: sync, Sessions: issuer},
	}, nil
}

func (s *Service) Router() http.Handler { return NewRouter(s.Issuer, s.Sync) }
