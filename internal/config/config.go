package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "ALBUMDAY"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "albumday.db"
	defaultLogLevel          = "info"
	defaultLogEncoding       = "json"
	defaultAdminTokenTTL     = 60
	defaultEditAfterCreation = 24 * time.Hour
	defaultEditAfterUpdate   = 2 * time.Hour
)

// AppConfig captures runtime configuration for the API server and CLI.
type AppConfig struct {
	HTTPAddress       string
	AllowedOrigins    []string
	DatabasePath      string
	LogLevel          string
	LogEncoding       string
	AdminPasswordHash string
	AdminSigningKey   string
	AdminTokenTTL     time.Duration
	CronSecret        string
	EditAfterCreation time.Duration
	EditAfterUpdate   time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{"*"})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("admin.token_ttl_minutes", defaultAdminTokenTTL)
	configViper.SetDefault("notifications.edit_after_creation", defaultEditAfterCreation)
	configViper.SetDefault("notifications.edit_after_update", defaultEditAfterUpdate)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		AllowedOrigins:    configViper.GetStringSlice("http.allowed_origins"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		LogEncoding:       configViper.GetString("log.encoding"),
		AdminPasswordHash: configViper.GetString("admin.password_hash"),
		AdminSigningKey:   configViper.GetString("admin.signing_secret"),
		AdminTokenTTL:     time.Duration(configViper.GetInt("admin.token_ttl_minutes")) * time.Minute,
		CronSecret:        configViper.GetString("cron.secret"),
		EditAfterCreation: configViper.GetDuration("notifications.edit_after_creation"),
		EditAfterUpdate:   configViper.GetDuration("notifications.edit_after_update"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadStorage parses only the keys needed by CLI maintenance commands.
func LoadStorage(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
		LogEncoding:  configViper.GetString("log.encoding"),
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return AppConfig{}, fmt.Errorf("database.path is required")
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.AdminSigningKey) == "" {
		return fmt.Errorf("admin.signing_secret is required")
	}
	if c.AdminTokenTTL <= 0 {
		return fmt.Errorf("admin.token_ttl_minutes must be positive")
	}
	if c.EditAfterCreation <= 0 || c.EditAfterUpdate <= 0 {
		return fmt.Errorf("notifications edit thresholds must be positive")
	}
	return nil
}
