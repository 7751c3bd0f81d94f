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
	Oracle OracleConfig `yaml:"oracle" mapstructure:"oracle"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	ICP    ICPConfig    `yaml:"icp" mapstructure:"icp"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OracleConfig configures the customer lookup service.
type OracleConfig struct {
	URL                   string  `yaml:"url" mapstructure:"url"`
	Key                   string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs           int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec            float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts           int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	ExistingCustomerScore int     `yaml:"existing_customer_score" mapstructure:"existing_customer_score"`
	BreakerThreshold      int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
}

// BatchConfig tunes the analysis engine.
type BatchConfig struct {
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	RecommendedSize int `yaml:"recommended_size" mapstructure:"recommended_size"`
	MaxStableSize   int `yaml:"max_stable_size" mapstructure:"max_stable_size"`
	AbsoluteMax     int `yaml:"absolute_max" mapstructure:"absolute_max"`
}

// IngestConfig bounds file intake.
type IngestConfig struct {
	MaxFileMB int `yaml:"max_file_mb" mapstructure:"max_file_mb"`
}

// ICPConfig points at the scoring criteria file.
type ICPConfig struct {
	CriteriaPath string `yaml:"criteria_path" mapstructure:"criteria_path"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional), environment
// variables with the PROSPECT_ prefix, and built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospects.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("oracle.timeout_secs", 45)
	v.SetDefault("oracle.rate_per_sec", 2.0)
	v.SetDefault("oracle.max_attempts", 1)
	v.SetDefault("oracle.existing_customer_score", 70)
	v.SetDefault("oracle.breaker_threshold", 5)
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.recommended_size", 50)
	v.SetDefault("batch.max_stable_size", 200)
	v.SetDefault("batch.absolute_max", 1000)
	v.SetDefault("ingest.max_file_mb", 10)

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

// InitLogger builds the global zap logger from the log config.
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
