package config_fx

import (
	"go.uber.org/fx"

	"exampattern/internal/config"
	"exampattern/internal/infra"
	"exampattern/pkg/utils"
)

var Module = fx.Options(
	fx.Provide(provideConfig, provideJWTManager),
)

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	infra.SetupLogger(cfg.LogLevel, cfg.LogFile)
	return cfg, nil
}

func provideJWTManager(cfg *config.Config) *utils.JWTManager {
	return utils.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
}
