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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
//
// The metric engine always reads facts from Postgres. Driver selects where
// target history is kept: "postgres" uses the same database, "sqlite" keeps
// targets in a local file named by SQLitePath.
type StoreConfig struct {
	Driver               string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL          string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath           string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns             int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns             int32  `yaml:"min_conns" mapstructure:"min_conns"`
	StatementTimeoutSecs int    `yaml:"statement_timeout_secs" mapstructure:"statement_timeout_secs"`
	RetryAttempts        int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs       int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// EngineConfig bounds the per-metric fan-out path.
type EngineConfig struct {
	FanoutConcurrency int     `yaml:"fanout_concurrency" mapstructure:"fanout_concurrency"`
	FanoutQPS         float64 `yaml:"fanout_qps" mapstructure:"fanout_qps"`
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
	v.SetEnvPrefix("WISDOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "wisdom-targets.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.statement_timeout_secs", 30)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff_ms", 50)
	v.SetDefault("engine.fanout_concurrency", 4)
	v.SetDefault("engine.fanout_qps", 50.0)
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

// Validate checks that the configuration can open a store.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return eris.New("config: store.sqlite_path is required for the sqlite driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Engine.FanoutConcurrency < 1 {
		return eris.Errorf("config: engine.fanout_concurrency must be positive, got %d", c.Engine.FanoutConcurrency)
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
