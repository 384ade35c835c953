// Package config loads orchestrator configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full orchestrator configuration.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Content  ContentConfig  `mapstructure:"content_service"`
	Research ResearchConfig `mapstructure:"research"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServiceConfig struct {
	HTTPPort    int `mapstructure:"http_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

type ContentConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	Burst          int           `mapstructure:"burst"`
}

// ResearchConfig holds the pipeline tuning knobs. The similarity threshold
// and quality coefficients are ad hoc constants preserved from the original
// tuning; they are configuration, not derived values.
type ResearchConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BaseDelay           time.Duration `mapstructure:"base_delay"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	MinContentLength    int           `mapstructure:"min_content_length"`
	QualityLengthDiv    int           `mapstructure:"quality_length_divisor"`
	QualityPerSource    int           `mapstructure:"quality_per_source"`
	QualityComponentCap int           `mapstructure:"quality_component_cap"`
	QualityAcceptMin    int           `mapstructure:"quality_accept_min"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads the config file at CONFIG_PATH (default ./config/horizon.yaml
// if present) and applies HORIZON_* environment overrides. Missing file is
// not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HORIZON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/horizon.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && fileExists(path) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.http_port", 8081)
	v.SetDefault("service.metrics_port", 2112)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "horizon-research")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.session_ttl", 24*time.Hour)

	v.SetDefault("postgres.enabled", false)

	v.SetDefault("content_service.base_url", "http://content-service:8000")
	v.SetDefault("content_service.timeout", 120*time.Second)
	v.SetDefault("content_service.requests_per_sec", 5.0)
	v.SetDefault("content_service.burst", 3)

	v.SetDefault("research.batch_size", 3)
	v.SetDefault("research.max_attempts", 3)
	v.SetDefault("research.base_delay", time.Second)
	v.SetDefault("research.similarity_threshold", 0.8)
	v.SetDefault("research.min_content_length", 50)
	v.SetDefault("research.quality_length_divisor", 50)
	v.SetDefault("research.quality_per_source", 10)
	v.SetDefault("research.quality_component_cap", 50)
	v.SetDefault("research.quality_accept_min", 40)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
