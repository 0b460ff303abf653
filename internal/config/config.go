// Package config handles loading and parsing application configuration.
// It supports two sources for the file path (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// A .env file in the working directory, if present, is loaded first so its
// values can override the YAML the same way real environment variables do.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/aanand-mishra/idcard-portal/internal/types"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// StoragePath is the filesystem path to the SQLite history database.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`

	HTTPServer `yaml:"http_server"`
	Validator  Validator `yaml:"validator"`
	Upload     Upload    `yaml:"upload"`
	Session    Session   `yaml:"session"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr         string        `yaml:"address"       env:"HTTP_SERVER_ADDR" env-required:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"HTTP_SERVER_READ_TIMEOUT"  env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_SERVER_WRITE_TIMEOUT" env-default:"0s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"HTTP_SERVER_IDLE_TIMEOUT"  env-default:"60s"`
}

// Validator points at the external ID card validation service.
type Validator struct {
	// BaseURL is the scheme+host of the service, e.g. http://localhost:5000
	BaseURL string `yaml:"base_url" env:"VALIDATOR_BASE_URL" env-default:"http://localhost:5000"`

	// Variant is "single" (POST /process-image) or "dual"
	// (POST /process-image-yolo or /process-image-nlp).
	Variant types.Variant `yaml:"variant" env:"VALIDATOR_VARIANT" env-default:"single"`

	// DefaultModel is the selection a fresh session starts with (1 = YOLO, 2 = NLP).
	DefaultModel types.Model `yaml:"default_model" env:"VALIDATOR_DEFAULT_MODEL" env-default:"1"`
}

// Upload limits incoming multipart bodies.
type Upload struct {
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"16777216"`
}

// Session configures the per-browser widget sessions.
type Session struct {
	TTL          time.Duration `yaml:"ttl"           env:"SESSION_TTL"           env-default:"30m"`
	SecureCookie bool          `yaml:"secure_cookie" env:"SESSION_SECURE_COOKIE" env-default:"false"`
}

// Load reads the YAML file at path, applies environment overrides and
// checks the values that cleanenv cannot.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Validator.Variant {
	case types.VariantSingle, types.VariantDual:
	default:
		return fmt.Errorf("validator.variant must be %q or %q, got %q",
			types.VariantSingle, types.VariantDual, c.Validator.Variant)
	}
	if !c.Validator.DefaultModel.Valid() {
		return fmt.Errorf("validator.default_model must be 1 or 2, got %d", c.Validator.DefaultModel)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}

// MustLoad reads, validates, and returns the application config.
// It exits the process if the config cannot be loaded.
func MustLoad() *Config {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("cannot read .env: %s", err)
	}

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}
