package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Assess  AssessConfig  `yaml:"assess" mapstructure:"assess"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CatalogConfig configures the product catalog client.
type CatalogConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SessionConfig configures the interactive scan session.
type SessionConfig struct {
	DebounceMillis    int `yaml:"debounce_millis" mapstructure:"debounce_millis"`
	CooldownMillis    int `yaml:"cooldown_millis" mapstructure:"cooldown_millis"`
	LookupTimeoutSecs int `yaml:"lookup_timeout_secs" mapstructure:"lookup_timeout_secs"`
}

// AssessConfig configures the safety assessment engine.
type AssessConfig struct {
	RiskRecordsPath string `yaml:"risk_records_path" mapstructure:"risk_records_path"`
}

// HistoryConfig configures the recent-scan cache.
type HistoryConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SAFESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "safescan.db")
	v.SetDefault("catalog.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("catalog.timeout_secs", 10)
	v.SetDefault("catalog.rate_limit", 10.0)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.breaker_threshold", 5)
	v.SetDefault("catalog.breaker_reset_secs", 15)
	v.SetDefault("session.debounce_millis", 500)
	v.SetDefault("session.cooldown_millis", 2000)
	v.SetDefault("session.lookup_timeout_secs", 8)
	v.SetDefault("history.capacity", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for a given run mode. Modes: "scan"
// (one-shot and interactive scanning), "serve" (HTTP API), "store"
// (migrate/seed and history commands).
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "scan":
		checkStore()
		if c.Catalog.BaseURL == "" {
			problems = append(problems, "catalog.base_url is required")
		}
		if c.Session.DebounceMillis < 0 || c.Session.DebounceMillis > 5000 {
			problems = append(problems, "session.debounce_millis must be between 0 and 5000")
		}
		if c.Session.CooldownMillis < c.Session.DebounceMillis {
			problems = append(problems, "session.cooldown_millis must be >= session.debounce_millis")
		}
		if c.History.Capacity < 1 {
			problems = append(problems, "history.capacity must be >= 1")
		}
	case "serve":
		checkStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Catalog.BaseURL == "" {
			problems = append(problems, "catalog.base_url is required")
		}
	case "store":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
