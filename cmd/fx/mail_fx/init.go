package mail_fx

import (
	"go.uber.org/fx"

	"exampattern/internal/config"
	"exampattern/internal/services"
)

var Module = fx.Provide(provideMailService)

func provideMailService(cfg *config.Config) services.IMailService {
	return services.NewMailService(cfg.SMTP, cfg.BaseURL)
}
