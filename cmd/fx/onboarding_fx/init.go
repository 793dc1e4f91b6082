package onboarding_fx

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"exampattern/internal/api/controllers"
	"exampattern/internal/config"
	"exampattern/internal/services"
)

var Module = fx.Provide(
	ProvideExamAdvisor,
	ProvideOnboardingService,
	ProvideOnboardingController)

// ProvideExamAdvisor creates the language-model client named by LLM_PROVIDER.
func ProvideExamAdvisor(cfg *config.Config) (services.ExamAdvisor, error) {
	log.Infof("Initializing %s exam advisor", cfg.LLM.Provider)
	return services.NewExamAdvisor(context.Background(), cfg.LLM)
}

func ProvideOnboardingService(
	cfg *config.Config,
	ledger services.LedgerServiceInterface,
	advisor services.ExamAdvisor,
) services.OnboardingServiceInterface {
	return services.NewOnboardingService(ledger, advisor, cfg.LLM.RequestLimit)
}

func ProvideOnboardingController(
	onboarding services.OnboardingServiceInterface,
) *controllers.OnboardingController {
	return controllers.NewOnboardingController(onboarding)
}
