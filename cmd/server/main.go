// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/btouchard/keygate/internal/adapters/http"
	"github.com/btouchard/keygate/internal/adapters/postgres"
	"github.com/btouchard/keygate/internal/app"
	"github.com/btouchard/keygate/internal/app/ports"
	"github.com/btouchard/keygate/internal/config"
	"github.com/btouchard/keygate/internal/middleware"
	"github.com/btouchard/keygate/internal/services"
	"github.com/btouchard/keygate/pkg/crypto"
	applog "github.com/btouchard/keygate/pkg/logger"
	"github.com/btouchard/keygate/web"
)

var (
	configFile string
	port       string
)

var RootCmd = &cobra.Command{
	Use:           "keygate",
	Short:         "Key management and message signing service for Ethereum and Sui.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default).",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the activity journal schema.",
	RunE:  runMigrate,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("KEYGATE_CONFIG"), "path to a YAML config file")
	RootCmd.PersistentFlags().StringVar(&port, "port", "", "listening port, overrides config and PORT")
	RootCmd.AddCommand(serveCmd, migrateCmd)
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if port != "" {
		cfg.Port = port
		if err := cfg.Validate(); err != nil {
			return config.Config{}, nil, fmt.Errorf("invalid --port: %w", err)
		}
	}

	logger := applog.New(os.Stdout, applog.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.With(applog.ComponentKey, "SERVER")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Journal (optional)
	var repo ports.ActivityRepository
	if cfg.JournalEnabled() {
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		repo = store.ActivityRepository()
		log.Info("activity journal enabled", "retention", cfg.JournalRetention)
	} else {
		log.Info("activity journal disabled, DATABASE_URL not set")
	}

	activity := app.NewActivityService(repo, logger)
	wallets := app.NewWalletService(activity, logger,
		crypto.NewEthereum(logger.With(applog.ComponentKey, "ETHEREUM")),
		crypto.NewSui(),
	)

	if activity.Enabled() {
		scheduler := services.NewScheduler(activity, cfg.JournalRetention, cfg.JournalPruneInterval, logger)
		go scheduler.Start(ctx)
	}

	var rl *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rl = middleware.NewRateLimiter(cfg.RateLimit, logger)
		defer rl.Stop()
	}

	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Wallets:     wallets,
		Activity:    activity,
		RateLimiter: rl,
		AdminToken:  cfg.AdminToken,
		Docs:        web.Assets,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("keygate listening", "port", cfg.Port, "ratelimit", cfg.RateLimit.Enabled, "admin", cfg.AdminToken != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.JournalEnabled() {
		return errors.New("DATABASE_URL (or database.url) is required to migrate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect journal database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("activity journal schema is up to date", applog.ComponentKey, "MIGRATE")
	return nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "keygate:", err)
		os.Exit(1)
	}
}
