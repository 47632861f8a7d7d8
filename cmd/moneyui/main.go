package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneymanager/internal/accounts"
	"moneymanager/internal/amqp"
	"moneymanager/internal/cache"
	"moneymanager/internal/cli"
	"moneymanager/internal/config"
	"moneymanager/internal/form"
	"moneymanager/internal/gateway"
	apphttp "moneymanager/internal/http"
	applog "moneymanager/internal/log"
	"moneymanager/internal/middleware/ratelimit"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

const (
	maxOpenForms         = 500
	cacheCleanupInterval = 5 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp, os.Stdout)
	cfg := cli.MustLoadConfig(logger, (*config.Config).Validate)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	backend := gateway.New(cfg.APIBaseURL,
		gateway.WithTimeout(cfg.APITimeout),
		gateway.WithRetry(cfg.APIReadRetries),
		gateway.WithLogger(logger),
	)

	directory := accounts.NewDirectory(backend, cfg.AccountsCacheTTL, logger)
	if cfg.FormSecret == "" {
		logger.Warn("FORM_SECRET not set; open forms will not survive a restart")
	}
	forms := form.NewRegistry(form.NewTokenSigner(cfg.FormSecret), maxOpenForms, cfg.FormTTL)

	caches := cache.NewManager(logger)
	caches.Register("accounts", directory.Cache())
	caches.Register("forms", forms.Cache())
	caches.StartCleanup(cacheCleanupInterval)

	deps := apphttp.Deps{
		Backend:   backend,
		Pinger:    backend,
		Accounts:  directory,
		Forms:     forms,
		Caches:    caches,
		Location:  loc,
		Logger:    logger,
		RateLimit: ratelimit.DefaultConfig(),
	}

	var (
		repo       *storage.SQLiteRepository
		amqpClient *amqp.Client
	)
	if cfg.JournalEnabled {
		repo, err = cli.OpenJournal(logger, cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open journal", "error", err)
			os.Exit(1)
		}

		var publisher services.SyncPublisher
		if cfg.AMQPURL != "" {
			dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			amqpClient, err = amqp.NewClient(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
			cancel()
			if err != nil {
				// The ledger worker's sweep picks up unpublished entries.
				logger.Warn("AMQP unavailable, journal entries will wait for the sweep", "error", err)
			} else {
				publisher = amqpClient
			}
		}

		journal := services.NewJournal(repo, publisher, logger)
		deps.Hooks = append(deps.Hooks, journal.OnSaved())
		deps.Journal = repo
		logger.Info("Journal enabled", "path", cfg.SQLiteDBPath, "publishing", publisher != nil)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(context.Background(), logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if repo != nil {
			if err := repo.Close(); err != nil {
				logger.Warn("Journal close error", "error", err)
			}
		}
	})

	logger.Info("Starting moneyui", "port", cfg.Port, "api", cfg.APIBaseURL, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
