// README: Entry point; loads config, wires stores and services, serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"staybook/internal/config"
	httptransport "staybook/internal/http"
	"staybook/internal/infra"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/modules/assignment"
	"staybook/internal/modules/booking"
	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/modules/ledger"
	"staybook/internal/modules/notification"
	"staybook/internal/modules/order"
	"staybook/internal/modules/payment"
	"staybook/internal/modules/settings"
	"staybook/internal/types"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	defaultRate, err := types.ParseRate(cfg.Commission.DefaultRate)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	if cfg.DB.AutoMigrate {
		if err := infra.Migrate(ctx, dbPool, log); err != nil {
			return err
		}
	}

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	notificationSvc := notification.NewService(notification.NewStore(dbPool), notification.NewRedisPublisher(redisClient), log)

	sessions := identity.NewSessionStore(redisClient, cfg.Session.Secret, cfg.Session.TTL)
	identitySvc := identity.NewService(identity.NewStore(dbPool), sessions, notificationSvc, log)

	catalogSvc := catalog.NewService(catalog.NewStore(dbPool), notificationSvc, log)

	settingsSvc := settings.NewService(settings.NewStore(dbPool), defaultRate, log)
	ledgerSvc := ledger.NewService(settingsSvc, ledger.NewStore(dbPool), log)

	gateway := payment.NewStripe(cfg.Payment.SecretKey, cfg.Payment.WebhookSecret)

	bookingStore := booking.NewStore(dbPool)
	bookingSvc := booking.NewService(bookingStore, catalogSvc, gateway, notificationSvc, cfg.Payment.Currency, log)

	orderSvc := order.NewService(order.NewStore(dbPool), catalogSvc, ledgerSvc, gateway, notificationSvc, cfg.Payment.Currency, log)

	assignmentSvc := assignment.NewService(assignment.NewStore(dbPool), bookingStore, catalogSvc, notificationSvc, log)

	dispatcher := payment.NewDispatcher(gateway, log, orderSvc, bookingSvc)

	server := httptransport.NewServer(httptransport.ServerDeps{
		Identity:      identitySvc,
		Sessions:      identitySvc,
		Catalog:       catalogSvc,
		Booking:       bookingSvc,
		Order:         orderSvc,
		Assignment:    assignmentSvc,
		Notifications: notificationSvc,
		Settings:      settingsSvc,
		Ledger:        ledgerSvc,
		Webhooks:      dispatcher,
		Metrics:       promhttp.Handler(),
		Log:           log,
		SessionTTL:    cfg.Session.TTL,
		SecureCookie:  cfg.App.Environment == "production",
		LoginRPS:      cfg.Login.RPS,
		LoginBurst:    cfg.Login.Burst,
	})
	return server.ListenAndServe(ctx, cfg.HTTP.Addr)
}
