package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the process configuration. Sources apply in order: defaults, the
// YAML file, the .env file, then the environment.
type Config struct {
	HTTPAddr       string   `yaml:"http_addr" env:"YAHTZEE_HTTP_ADDR"`
	PublicPort     int      `yaml:"public_port" env:"YAHTZEE_PUBLIC_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"YAHTZEE_ALLOWED_ORIGINS" envSeparator:","`
	Storage        Storage  `yaml:"storage" envPrefix:"YAHTZEE_STORAGE_"`
	Log            Log      `yaml:"log" envPrefix:"YAHTZEE_LOG_"`
	OTel           OTel     `yaml:"otel" envPrefix:"YAHTZEE_OTEL_"`

	// TrustProxyHeaders takes the client address from X-Real-IP and
	// X-Forwarded-For. Only enable it behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"YAHTZEE_TRUST_PROXY_HEADERS"`
}

type Storage struct {
	Backend  string `yaml:"backend" env:"BACKEND"`
	Path     string `yaml:"path" env:"PATH"`
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	RedisKey string `yaml:"redis_key" env:"REDIS_KEY"`
}

type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type OTel struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// LoadOptions locates the optional files. Empty fields use defaults.
type LoadOptions struct {
	ConfigPath string
	DotEnvPath string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:       ":5050",
		AllowedOrigins: []string{"*"},
		Storage: Storage{
			Backend: BackendFile,
			Path:    "data/game_state.json",
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		OTel: OTel{
			ServiceName: "yahtzee",
		},
	}
}

// Load builds the configuration. Missing files are skipped.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("YAHTZEE_CONFIG")
	}
	if path == "" {
		path = "yahtzee.yaml"
	}
	if err := loadYAML(path, &cfg); err != nil {
		return Config{}, err
	}

	dotenv := opts.DotEnvPath
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromMap builds the configuration from a key/value map instead of the
// process environment, e.g. a Nakama runtime env.
func FromMap(vars map[string]string) (Config, error) {
	cfg := Default()
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendBolt, BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage path is required for backend %q", c.Storage.Backend)
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.RedisURL) == "" {
			return fmt.Errorf("redis url is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.OTel.Enabled && strings.TrimSpace(c.OTel.Endpoint) == "" {
		return fmt.Errorf("otel endpoint is required when tracing is enabled")
	}
	return nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
