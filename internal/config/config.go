package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DirName is the workspace directory created by `shopfloor init`.
const DirName = ".shopfloor"

// Environment variables override the file; all share this prefix.
const EnvPrefix = "SHOPFLOOR_"

// Config is the root configuration for a shopfloor workspace.
type Config struct {
	Version    int        `yaml:"version"`
	User       string     `yaml:"user,omitempty" env:"USER"` // default operator name
	Store      Store      `yaml:"store" envPrefix:"STORE_"`
	Retry      Retry      `yaml:"retry" envPrefix:"RETRY_"`
	Production Production `yaml:"production" envPrefix:"PRODUCTION_"`
	Log        Log        `yaml:"log" envPrefix:"LOG_"`
}

// Store selects and addresses the backing document store.
type Store struct {
	Driver    string `yaml:"driver" env:"DRIVER"`                       // sqlite, memory or redis
	Path      string `yaml:"path,omitempty" env:"PATH"`                 // sqlite file, relative to the workspace
	RedisAddr string `yaml:"redis_addr,omitempty" env:"REDIS_ADDR"`     // host:port for the redis driver
	RootKey   string `yaml:"root_key,omitempty" env:"ROOT_KEY"`         // document holding every collection
	Prefix    string `yaml:"redis_prefix,omitempty" env:"REDIS_PREFIX"` // key namespace for the redis driver
}

// Retry bounds the optimistic write loop.
type Retry struct {
	MaxAttempts    int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialDelayMS int `yaml:"initial_delay_ms" env:"INITIAL_DELAY_MS"`
}

// InitialDelay returns the first backoff as a duration.
func (r Retry) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// Production holds the shop rules.
type Production struct {
	BatchSize           int      `yaml:"batch_size" env:"BATCH_SIZE"`
	GrindingFreeCovers  []string `yaml:"grinding_free_covers,omitempty" env:"GRINDING_FREE_COVERS" envSeparator:","`
	CustomerPrefix      string   `yaml:"customer_prefix,omitempty" env:"CUSTOMER_PREFIX"`
	ReplenishmentPrefix string   `yaml:"replenishment_prefix,omitempty" env:"REPLENISHMENT_PREFIX"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`   // logrus level name
	Format string `yaml:"format" env:"FORMAT"` // text or json
}

// Path returns the path to a file inside the workspace directory under root.
func Path(root string, parts ...string) string {
	elems := append([]string{root, DirName}, parts...)
	return filepath.Join(elems...)
}

// Load reads and parses the config file at the given path, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := ApplyEnv(cfg, filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv loads dotenv (when the file exists) into the process environment
// without overwriting variables already set, then overlays SHOPFLOOR_*
// variables onto cfg.
func ApplyEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the config `shopfloor init` writes.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Store: Store{
			Driver:  "sqlite",
			Path:    "shop.db",
			RootKey: "ls",
			Prefix:  "shopfloor:",
		},
		Retry: Retry{
			MaxAttempts:    5,
			InitialDelayMS: 5,
		},
		Production: Production{
			BatchSize:           20,
			GrindingFreeCovers:  []string{"AK"},
			CustomerPrefix:      "CO",
			ReplenishmentPrefix: "RT",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store: path is required for the sqlite driver")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store: redis_addr is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store: driver must be 'sqlite', 'memory' or 'redis', got %q", c.Store.Driver)
	}
	if c.Retry.MaxAttempts < 3 {
		return fmt.Errorf("retry: max_attempts must be at least 3, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelayMS < 0 {
		return fmt.Errorf("retry: initial_delay_ms cannot be negative")
	}
	if c.Production.BatchSize <= 0 {
		return fmt.Errorf("production: batch_size must be positive, got %d", c.Production.BatchSize)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log: format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds a logrus logger writing to stderr.
func NewLogger(level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
