package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile        = "config.yaml"
	DefaultStoragePath       = ".xsync/xsync.db"
	DefaultBaseURL           = "https://api.x.com"
	DefaultTokenEnv          = "X_BEARER_TOKEN"
	DefaultRequestsPerSecond = 1.0
	DefaultMaxPages          = 5
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

type Config struct {
	Users         []string  `yaml:"users"`
	Hashtags      []string  `yaml:"hashtags"`
	StartDate     StartDate `yaml:"start_date"`
	DropAfter     MaxAge    `yaml:"drop_after"`
	DirtyWords    []string  `yaml:"dirty_words"`
	IncludeHeader *bool     `yaml:"include_header"`
	NoDelete      *bool     `yaml:"no_delete"`
	MirrorURL     string    `yaml:"mirror_url"`

	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Privacy PrivacyConfig `yaml:"privacy"`
	Log     LogConfig     `yaml:"log"`
}

type APIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	TokenEnv          string  `yaml:"token_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxPages          int     `yaml:"max_pages"`

	// Resolved from env var at load time.
	Token string `yaml:"-"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

type RedactConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Patterns []string `yaml:"patterns"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Options is the typed connector configuration handed to connector.Init.
type Options struct {
	Users          []string
	Hashtags       []string
	StartDate      time.Time     // zero when unset
	DropAfter      time.Duration // zero when unset
	DirtyWords     []string
	IncludeHeader  bool
	NoDelete       bool
	MirrorURL      string
	RedactPatterns []string
}

// DefaultOptions returns options with the documented defaults and no sources.
func DefaultOptions() Options {
	return Options{IncludeHeader: true}
}

// Options flattens the loaded config into connector options.
func (c *Config) Options() Options {
	opts := DefaultOptions()
	opts.Users = c.Users
	opts.Hashtags = c.Hashtags
	opts.StartDate = c.StartDate.Time
	opts.DropAfter = c.DropAfter.Duration
	opts.DirtyWords = c.DirtyWords
	opts.MirrorURL = c.MirrorURL
	if c.IncludeHeader != nil {
		opts.IncludeHeader = *c.IncludeHeader
	}
	if c.NoDelete != nil {
		opts.NoDelete = *c.NoDelete
	}
	if c.Privacy.Redact.Enabled {
		opts.RedactPatterns = c.Privacy.Redact.Patterns
	}
	return opts
}

// Load reads config.yaml from dir, loads an optional .env file, applies defaults,
// resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// A missing .env is normal; existing environment variables take precedence.
	_ = godotenv.Load()
	resolveEnv(cfg)

	return cfg, nil
}

// Parse decodes and validates config YAML without touching the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.TokenEnv == "" {
		cfg.API.TokenEnv = DefaultTokenEnv
	}
	if cfg.API.RequestsPerSecond == 0 {
		cfg.API.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.API.MaxPages == 0 {
		cfg.API.MaxPages = DefaultMaxPages
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	cfg.Users = normalize(cfg.Users, "@")
	cfg.Hashtags = normalize(cfg.Hashtags, "#")
}

// normalize trims entries, strips a leading symbol and drops blanks.
func normalize(values []string, prefix string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimPrefix(strings.TrimSpace(v), prefix)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolveEnv(cfg *Config) {
	cfg.API.Token = strings.TrimSpace(os.Getenv(cfg.API.TokenEnv))
}

func validate(cfg *Config) error {
	if cfg.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second: must not be negative, got %v", cfg.API.RequestsPerSecond)
	}
	if cfg.API.MaxPages < 0 {
		return fmt.Errorf("api.max_pages: must not be negative, got %d", cfg.API.MaxPages)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log.level: unknown level %q (want debug, info, warn or error)", cfg.Log.Level)
	}

	switch cfg.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Log.Format)
	}

	return nil
}
