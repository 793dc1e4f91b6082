package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.uber.org/fx"

	"exampattern/cmd/fx/account_fx"
	"exampattern/cmd/fx/config_fx"
	"exampattern/cmd/fx/controllers_fx"
	"exampattern/cmd/fx/db_fx"
	"exampattern/cmd/fx/mail_fx"
	"exampattern/cmd/fx/memcache_fx"
	"exampattern/cmd/fx/onboarding_fx"
	"exampattern/cmd/fx/payment_service_fx"
	"exampattern/internal/api"
	"exampattern/internal/api/controllers"
	"exampattern/internal/config"
	"exampattern/internal/services"
	"exampattern/pkg/utils"
)

func main() {
	app := fx.New(
		config_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		mail_fx.Module,
		payment_service_fx.Module,
		account_fx.Module,
		onboarding_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				log.Infof("Starting HTTP server at %s", srv.Addr)
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

func ProvideRouter(
	cfg *config.Config,
	jwt *utils.JWTManager,
	ledger services.LedgerServiceInterface,
	accountController *controllers.AccountController,
	paymentController *controllers.PaymentController,
	onboardingController *controllers.OnboardingController,
	healthController *controllers.HealthController) *gin.Engine {

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	return api.NewRouter(api.RouterDeps{
		JWT:         jwt,
		Ledger:      ledger,
		CORSOrigins: cfg.CORSOrigins,
		Accounts:    accountController,
		Payments:    paymentController,
		Onboarding:  onboardingController,
		Health:      healthController,
	})
}
