package memcache_fx

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"exampattern/internal/api/controllers"
	"exampattern/internal/config"
	"exampattern/internal/infra"
	mem "exampattern/pkg/memcache"
)

var Module = fx.Provide(provideTokenStore)

type tokenStoreResult struct {
	fx.Out

	Store mem.TokenStore
	Probe controllers.HealthProbe `group:"health"`
}

// provideTokenStore uses redis when REDIS_ADDR is set so one-time tokens
// survive restarts and are shared between instances.
func provideTokenStore(lc fx.Lifecycle, cfg *config.Config) (tokenStoreResult, error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, one-time tokens kept in memory")
		return tokenStoreResult{
			Store: mem.NewResetTokens(),
			Probe: controllers.HealthProbe{Name: "token_store", Check: func(context.Context) error { return nil }},
		}, nil
	}

	client, err := infra.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return tokenStoreResult{}, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return tokenStoreResult{
		Store: mem.NewRedisTokens(client),
		Probe: controllers.HealthProbe{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}},
	}, nil
}
