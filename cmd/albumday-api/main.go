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

	"github.com/MarcoPoloResearchLab/albumday/internal/auth"
	"github.com/MarcoPoloResearchLab/albumday/internal/config"
	"github.com/MarcoPoloResearchLab/albumday/internal/database"
	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/MarcoPoloResearchLab/albumday/internal/logging"
	"github.com/MarcoPoloResearchLab/albumday/internal/notifications"
	"github.com/MarcoPoloResearchLab/albumday/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	tokenIssuer     = "albumday-admin"
	tokenAudience   = "albumday-api"
	shutdownTimeout = 10 * time.Second
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "albumday-api",
		Short:         "Album-a-day discovery backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(
		newInitCommand(),
		newAdvanceDayCommand(),
		newTogglePauseCommand(),
		newResetJourneyCommand(),
		newHashPasswordCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	cmd.PersistentFlags().Int("admin-token-ttl-minutes", defaults.GetInt("admin.token_ttl_minutes"), "Admin token TTL in minutes")
	cmd.PersistentFlags().String("admin-signing-secret", "", "Admin token signing secret (overrides env)")
	cmd.PersistentFlags().String("cron-secret", "", "Shared secret for the scheduler endpoint (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "admin.token_ttl_minutes", "admin-token-ttl-minutes")
	bindFlag(cmd, "admin.signing_secret", "admin-signing-secret")
	bindFlag(cmd, "cron.secret", "cron-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, closeDB, err := openDatabase(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	clock, err := journey.NewGlobalClock(journey.ClockConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if _, _, err := clock.Initialize(ctx); err != nil {
		if !errors.Is(err, journey.ErrCatalogGap) {
			return err
		}
		logger.Error("journey not initialized: catalog has no album at position 1", zap.Bool("alert", true), zap.Error(err))
	}

	feed, err := notifications.NewFeed(notifications.FeedConfig{
		Database: db,
		Clock:    time.Now,
		NewID:    notifications.NewUUIDv7,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	engine, err := journey.NewEngine(journey.EngineConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
		Events:   feed,
		NotificationPolicy: journey.NotificationPolicy{
			EditAfterCreation: appConfig.EditAfterCreation,
			EditAfterUpdate:   appConfig.EditAfterUpdate,
		},
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AdminSigningKey),
		Issuer:        tokenIssuer,
		Audience:      tokenAudience,
		TokenTTL:      appConfig.AdminTokenTTL,
	})
	if err != nil {
		return err
	}
	if appConfig.AdminPasswordHash == "" {
		logger.Warn("admin login disabled: admin.password_hash is empty")
	}
	if appConfig.CronSecret == "" {
		logger.Warn("cron endpoint disabled: cron.secret is empty")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Progression:    engine,
		Clock:          clock,
		Feed:           feed,
		AdminTokens:    tokenManager,
		AdminPasswords: auth.NewPasswordVerifier(appConfig.AdminPasswordHash),
		CronSecret:     appConfig.CronSecret,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func openDatabase(appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = sqlDB.Close() }, nil
}
