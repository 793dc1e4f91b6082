package payment_service_fx

import (
	"go.uber.org/fx"

	"exampattern/internal/api/controllers"
	"exampattern/internal/config"
	"exampattern/internal/repositories"
	"exampattern/internal/services"
)

var Module = fx.Provide(
	provideLedgerService, provideSettlementService, providePaymentController,
)

func provideLedgerService(cfg *config.Config, repo repositories.LedgerRepository) (services.LedgerServiceInterface, error) {
	costs, err := services.NewCostTable(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	return services.NewLedgerService(repo, costs, cfg.Ledger.StartingGrant), nil
}

func provideSettlementService(
	cfg *config.Config,
	ledger services.LedgerServiceInterface,
	txns repositories.TransactionRepository,
) services.SettlementServiceInterface {
	return services.NewSettlementService(ledger, txns, services.SettlementOptionsFromConfig(cfg.Payment))
}

func providePaymentController(
	ledger services.LedgerServiceInterface,
	settlement services.SettlementServiceInterface,
	accounts services.AccountServiceInterface,
	mail services.IMailService,
) *controllers.PaymentController {
	return controllers.NewPaymentController(ledger, settlement, accounts, mail)
}
