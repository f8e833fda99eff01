// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"` // apply embedded migrations on boot
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	DefaultProvider   string        `yaml:"default_provider"` // openai|gemini|noop
	OpenAIModel       string        `yaml:"openai_model"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	GeminiModel       string        `yaml:"gemini_model"`
	GeminiBaseURL     string        `yaml:"gemini_base_url"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	ConcurrentLimit   int           `yaml:"concurrent_limit"` // max concurrent AI calls
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	PromptTokenBudget int           `yaml:"prompt_token_budget"`
}

type ExecutorConfig struct {
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	MaxRetries    int           `yaml:"max_retries"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	Jitter        float64       `yaml:"jitter"` // fraction of each delay
	RunCeiling    time.Duration `yaml:"run_ceiling"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

type RateLimitConfig struct {
	StartsPerWindow int           `yaml:"starts_per_window"`
	Window          time.Duration `yaml:"window"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Executor  ExecutorConfig  `yaml:"executor"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", envOr("CONFIG_PATH", "config.yaml"), "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes YAML, applies defaults and validates required fields.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Security.EncryptionKey == "" {
		return nil, errors.New("security.encryption_key is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.AI.DefaultProvider == "noop" && !dev {
		return nil, errors.New("ai.default_provider noop is only allowed in dev")
	}
	if cfg.Executor.StaleAfter <= cfg.Executor.RunCeiling {
		return nil, errors.New("executor.stale_after must exceed executor.run_ceiling")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.DefaultProvider == "" {
		cfg.AI.DefaultProvider = "openai"
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.CallTimeout <= 0 {
		cfg.AI.CallTimeout = 30 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.RequestsPerSecond <= 0 {
		cfg.AI.RequestsPerSecond = 5
	}
	if cfg.AI.Burst <= 0 {
		cfg.AI.Burst = cfg.AI.ConcurrentLimit
	}
	if cfg.AI.PromptTokenBudget <= 0 {
		cfg.AI.PromptTokenBudget = 6000
	}

	if cfg.Executor.Workers <= 0 {
		cfg.Executor.Workers = 4
	}
	if cfg.Executor.QueueSize <= 0 {
		cfg.Executor.QueueSize = 64
	}
	if cfg.Executor.MaxRetries <= 0 {
		cfg.Executor.MaxRetries = 3
	}
	if cfg.Executor.BaseBackoff <= 0 {
		cfg.Executor.BaseBackoff = time.Second
	}
	if cfg.Executor.Jitter <= 0 {
		cfg.Executor.Jitter = 0.1
	}
	if cfg.Executor.RunCeiling <= 0 {
		cfg.Executor.RunCeiling = 2 * time.Minute
	}
	if cfg.Executor.SweepInterval <= 0 {
		cfg.Executor.SweepInterval = 5 * time.Second
	}
	if cfg.Executor.StaleAfter <= 0 {
		cfg.Executor.StaleAfter = 5 * time.Minute
	}

	if cfg.RateLimit.StartsPerWindow <= 0 {
		cfg.RateLimit.StartsPerWindow = 30
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "ai-interviewer"
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
