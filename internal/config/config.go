package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "arbor.yaml"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Duration reads "1s" style values from both YAML and JSON.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// StoreConfig selects where sessions are kept.
type StoreConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	Path string `yaml:"path" json:"path"`
}

// RedisConfig holds the connection settings for the redis store.
type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
}

// HTTPConfig configures arbor serve.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Config represents the structure of arbor.yaml.
type Config struct {
	GroupsDir          string        `yaml:"groups_dir" json:"groups_dir"`
	PageSize           int           `yaml:"page_size" json:"page_size"`
	ContentDebounce    Duration      `yaml:"content_debounce" json:"content_debounce"`
	IdentifierDebounce Duration      `yaml:"identifier_debounce" json:"identifier_debounce"`
	LogLevel           string        `yaml:"log_level" json:"log_level"`
	Store              StoreConfig   `yaml:"store" json:"store"`
	Redis              RedisConfig   `yaml:"redis" json:"redis"`
	EncryptionKey      string        `yaml:"encryption_key" json:"encryption_key"`
	PIIPatterns        []string      `yaml:"pii_patterns" json:"pii_patterns"`
	HTTP               HTTPConfig    `yaml:"http" json:"http"`
	Metrics            MetricsConfig `yaml:"metrics" json:"metrics"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		GroupsDir:          ".",
		PageSize:           5,
		ContentDebounce:    Duration{time.Second},
		IdentifierDebounce: Duration{500 * time.Millisecond},
		LogLevel:           "info",
		Store:              StoreConfig{Kind: StoreMemory, Path: ".arbor/sessions"},
		Redis:              RedisConfig{Addr: "localhost:6379", Prefix: "arbor:session:"},
		HTTP:               HTTPConfig{Port: 8080},
	}
}

// Load reads a configuration file (YAML or JSON) over the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the engine cannot recover from.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store kind %q (want memory, file or redis)", c.Store.Kind)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if _, err := c.Key(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Key decodes the hex encryption key. It returns nil when encryption is off.
func (c Config) Key() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption_key must be hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ParseLevel maps a level name to its slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
