package account_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"exampattern/internal/config"
	"exampattern/internal/models/db_models"
	"exampattern/internal/repositories"
	"exampattern/internal/services"
	mem "exampattern/pkg/memcache"
	"exampattern/pkg/utils"
)

var Module = fx.Provide(
	provideAccountService, provideAccountRepo, provideSubjectRepo, provideOAuthProviders)

func provideAccountRepo(db *gorm.DB) repositories.AccountRepository {
	return repositories.NewAccountRepository(db)
}

func provideSubjectRepo(db *gorm.DB) repositories.SubjectRepositoryInterface {
	return repositories.NewSubjectRepository(db)
}

func provideOAuthProviders(cfg *config.Config) map[db_models.AuthProvider]*services.OAuthProvider {
	return services.NewOAuthProviders(cfg.OAuth, cfg.BaseURL)
}

func provideAccountService(
	accountRepo repositories.AccountRepository,
	subjectRepo repositories.SubjectRepositoryInterface,
	tokens mem.TokenStore,
	mailService services.IMailService,
	jwt *utils.JWTManager,
	ledger services.LedgerServiceInterface,
	oauth map[db_models.AuthProvider]*services.OAuthProvider,
) services.AccountServiceInterface {
	return services.NewAccountService(accountRepo, subjectRepo, tokens, mailService, jwt, ledger, oauth)
}
