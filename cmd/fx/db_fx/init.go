package db_fx

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"exampattern/internal/api/controllers"
	"exampattern/internal/config"
	"exampattern/internal/infra"
	"exampattern/internal/repositories"
)

var Module = fx.Provide(
	provideDB, provideLedgerStores)

type dbResult struct {
	fx.Out

	DB    *gorm.DB
	Probe controllers.HealthProbe `group:"health"`
}

func provideDB(lc fx.Lifecycle, cfg *config.Config) (dbResult, error) {
	db, err := infra.OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		return dbResult{}, err
	}
	if err := infra.Migrate(db); err != nil {
		infra.CloseDatabase(db)
		return dbResult{}, err
	}
	log.Infof("Database ready (%s)", infra.DetectDialect(cfg.DatabaseURL))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			infra.CloseDatabase(db)
			return nil
		},
	})

	return dbResult{
		DB: db,
		Probe: controllers.HealthProbe{Name: "database", Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
	}, nil
}

type ledgerStores struct {
	fx.Out

	Ledger       repositories.LedgerRepository
	Transactions repositories.TransactionRepository
	Probe        controllers.HealthProbe `group:"health"`
}

// provideLedgerStores picks the balance and transaction backend named by
// LEDGER_BACKEND. Accounts always live in the SQL database.
func provideLedgerStores(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB) (ledgerStores, error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendMongo:
		mdb, err := infra.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return ledgerStores{}, err
		}
		if err := repositories.EnsureMongoIndexes(context.Background(), mdb); err != nil {
			infra.DisconnectMongo(context.Background(), mdb)
			return ledgerStores{}, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				infra.DisconnectMongo(ctx, mdb)
				return nil
			},
		})
		return ledgerStores{
			Ledger:       repositories.NewMongoLedgerRepository(mdb),
			Transactions: repositories.NewMongoTransactionRepository(mdb),
			Probe:        mongoProbe(mdb),
		}, nil

	case config.LedgerBackendMemory:
		log.Warn("Ledger running in memory; balances are lost on restart")
		return ledgerStores{
			Ledger:       repositories.NewInMemoryLedgerStore(),
			Transactions: repositories.NewInMemoryTransactionStore(),
			Probe:        controllers.HealthProbe{Name: "ledger", Check: func(context.Context) error { return nil }},
		}, nil

	default:
		return ledgerStores{
			Ledger:       repositories.NewLedgerRepository(db),
			Transactions: repositories.NewTransactionRepository(db),
			Probe:        controllers.HealthProbe{Name: "ledger", Check: func(context.Context) error { return nil }},
		}, nil
	}
}

func mongoProbe(mdb *mongo.Database) controllers.HealthProbe {
	return controllers.HealthProbe{Name: "mongo", Check: func(ctx context.Context) error {
		return mdb.Client().Ping(ctx, nil)
	}}
}
