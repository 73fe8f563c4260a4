package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"finbot/internal/app"
	"finbot/internal/chat"
	"finbot/internal/config"
	"finbot/internal/database"
	"finbot/internal/events"
	"finbot/internal/logger"
	"finbot/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

// @title           finbot API
// @version         1.0
// @description     finbot is a personal finance service: budgets with spending alerts, transaction tracking, reports and a chat bot for recording expenses.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	publisher, err := newPublisher(appConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("publisher close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := app.NewServices(dbManager.DB(), appConfig, publisher)
	dispatcher := svc.Dispatcher()

	opts := app.Options{
		InternalAPIKey: appConfig.InternalAPIKey,
		Chat:           dispatcher,
		BotCtx:         ctx,
	}
	if appConfig.TelegramToken != "" {
		telegram, err := chat.NewTelegram(appConfig.TelegramToken)
		if err != nil {
			return fmt.Errorf("failed to connect telegram: %w", err)
		}
		bot := chat.NewBot(telegram, dispatcher)
		if err := bot.Start(ctx); err != nil {
			return fmt.Errorf("failed to start chat bot: %w", err)
		}
		defer bot.Stop()
		opts.Bot = bot
	} else {
		log.Info("TELEGRAM_TOKEN not set, chat bot disabled")
	}

	sweeps, err := scheduler.New(appConfig.ActivationSweepCron, svc.Activation)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sweeps.Start()

	server := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           app.NewRouter(svc, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting finbot server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sweeps.Stop(shutdownCtx); err != nil {
			log.Warnf("scheduler stop: %v", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		logger.Get().Info("AMQP_URL not set, budget alert events are not published")
		return events.Nop{}, nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	return publisher, nil
}
