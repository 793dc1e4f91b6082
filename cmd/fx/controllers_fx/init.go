package controllers_fx

import (
	"go.uber.org/fx"

	"exampattern/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(provideHealthController))

type healthParams struct {
	fx.In

	Probes []controllers.HealthProbe `group:"health"`
}

func provideHealthController(p healthParams) *controllers.HealthController {
	return controllers.NewHealthController(p.Probes)
}
