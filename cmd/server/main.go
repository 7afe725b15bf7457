package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cfp-accounts/internal/config"
	"github.com/iliyamo/cfp-accounts/internal/database"
	"github.com/iliyamo/cfp-accounts/internal/handler"
	"github.com/iliyamo/cfp-accounts/internal/mail"
	"github.com/iliyamo/cfp-accounts/internal/middleware"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/reporting"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/router"
	"github.com/iliyamo/cfp-accounts/internal/service"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if !cfg.IsProd() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(logger)

	reporter := reporting.New(cfg.SentryDSN, cfg.Env, logger)
	defer reporter.Flush(2 * time.Second)

	// Database
	db, err := database.Open(context.Background(), database.Settings{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db, database.MySQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	accounts := repository.NewAccountRepo(db)
	notes := repository.NewNotificationRepo(db)

	// Mail pipeline
	sender, err := mail.New(cfg.Mail, logger)
	if err != nil {
		return fmt.Errorf("mail sender: %w", err)
	}
	inline := &queue.Inline{Sender: sender, Logger: logger, Reporter: reporter}
	var dispatcher service.Dispatcher = inline

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Mail.Dispatch == config.DispatchQueue {
		dispatcher = &queue.Broker{Publisher: queue.NewPublisher(cfg.RabbitURL), Fallback: inline, Logger: logger}
		go func() {
			err := queue.StartAccountConsumer(ctx, cfg.RabbitURL, inline.Deliver, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("account consumer stopped", "error", err)
			}
		}()
		logger.Info("mail dispatch via rabbitmq", "queue", queue.AccountQueueName)
	}

	// Workflow
	signer := utils.NewSigner(cfg.JWTSecret, nil)
	svc := service.NewAccountService(accounts, notes, dispatcher, signer,
		service.OptionsFromConfig(cfg), logger, reporter)

	// Redis backed rate limit and logout
	rdb := config.NewRedisClient(cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	var (
		checker middleware.RevocationChecker
		revoker handler.Revoker
	)
	if rev := middleware.NewRedisRevocations(rdb, cfg.Redis.RevocationPrefix); rev != nil {
		checker, revoker = rev, rev
	}

	errs := &handler.Errors{Prod: cfg.IsProd(), Logger: logger, Reporter: reporter}
	deps := router.Deps{
		Auth:          handler.NewAuthHandler(svc, revoker, errs),
		Admin:         handler.NewAdminHandler(svc, errs),
		Notifications: handler.NewNotificationHandler(notes, errs),
		Health:        handler.Health(db),
		JWT:           middleware.JWTAuth(signer, checker, logger),
		RateLimit:     middleware.NewTokenBucket(cfg.RateLimit, rdb, logger),
	}
	if cfg.OAuth.Enabled {
		deps.OAuth = handler.NewOAuthHandler(svc, cfg.OAuth, cfg.FrontendURL, cfg.IsProd(), errs)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			)
			return nil
		},
	}))
	router.Register(e, deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "env", cfg.Env, "login_policy", cfg.LoginPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	return nil
}
