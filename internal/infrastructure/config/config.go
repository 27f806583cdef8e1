package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all engine configuration.
type Config struct {
	API       APIConfig       `yaml:"api" toml:"api"`
	Push      PushConfig      `yaml:"push" toml:"push"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Inventory InventoryConfig `yaml:"inventory" toml:"inventory"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
}

// APIConfig holds platform REST client configuration.
type APIConfig struct {
	BaseURL         string   `envconfig:"VATOM_API_URL" default:"https://api.blockv.io" yaml:"base_url" toml:"base_url"`
	AppID           string   `envconfig:"VATOM_APP_ID" yaml:"app_id" toml:"app_id"`
	Timeout         Duration `envconfig:"VATOM_API_TIMEOUT" default:"30s" yaml:"timeout" toml:"timeout"`
	RetryMax        int      `envconfig:"VATOM_API_RETRY_MAX" default:"3" yaml:"retry_max" toml:"retry_max"`
	RateLimit       float64  `envconfig:"VATOM_API_RATE_LIMIT" default:"0" yaml:"rate_limit" toml:"rate_limit"`
	BreakerFailures uint32   `envconfig:"VATOM_API_BREAKER_FAILURES" default:"10" yaml:"breaker_failures" toml:"breaker_failures"`
}

// PushConfig holds push channel configuration.
type PushConfig struct {
	URL          string   `envconfig:"VATOM_PUSH_URL" default:"wss://newws.blockv.io/ws" yaml:"url" toml:"url"`
	Enabled      bool     `envconfig:"VATOM_PUSH_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	ReconnectMin Duration `envconfig:"VATOM_PUSH_RECONNECT_MIN" default:"1s" yaml:"reconnect_min" toml:"reconnect_min"`
	ReconnectMax Duration `envconfig:"VATOM_PUSH_RECONNECT_MAX" default:"30s" yaml:"reconnect_max" toml:"reconnect_max"`
}

// CacheConfig holds region snapshot persistence configuration.
type CacheConfig struct {
	Enabled     bool     `envconfig:"VATOM_CACHE_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	Dir         string   `envconfig:"VATOM_CACHE_DIR" yaml:"dir" toml:"dir"`
	Compression string   `envconfig:"VATOM_CACHE_COMPRESSION" default:"none" yaml:"compression" toml:"compression"`
	SaveDelay   Duration `envconfig:"VATOM_CACHE_SAVE_DELAY" default:"5s" yaml:"save_delay" toml:"save_delay"`
}

// InventoryConfig tunes the inventory synchronization algorithm.
type InventoryConfig struct {
	PageSize           int `envconfig:"VATOM_INVENTORY_PAGE_SIZE" default:"100" yaml:"page_size" toml:"page_size"`
	InitialPages       int `envconfig:"VATOM_INVENTORY_INITIAL_PAGES" default:"4" yaml:"initial_pages" toml:"initial_pages"`
	MaxConcurrentPages int `envconfig:"VATOM_INVENTORY_MAX_CONCURRENT_PAGES" default:"32" yaml:"max_concurrent_pages" toml:"max_concurrent_pages"`
	PageCeiling        int `envconfig:"VATOM_INVENTORY_PAGE_CEILING" default:"100" yaml:"page_ceiling" toml:"page_ceiling"`
	BatchSize          int `envconfig:"VATOM_INVENTORY_BATCH_SIZE" default:"100" yaml:"batch_size" toml:"batch_size"`
	IndexPageSize      int `envconfig:"VATOM_INVENTORY_INDEX_PAGE_SIZE" default:"1000" yaml:"index_page_size" toml:"index_page_size"`
}

// AuthConfig holds the credentials handed to the engine by the host app.
type AuthConfig struct {
	AccessToken  string `envconfig:"VATOM_ACCESS_TOKEN" yaml:"access_token" toml:"access_token"`
	RefreshToken string `envconfig:"VATOM_REFRESH_TOKEN" yaml:"refresh_token" toml:"refresh_token"`
	UserID       string `envconfig:"VATOM_USER_ID" yaml:"user_id" toml:"user_id"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// ServerConfig holds the inspector HTTP server configuration.
type ServerConfig struct {
	Enabled bool   `envconfig:"INSPECTOR_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	Addr    string `envconfig:"INSPECTOR_ADDR" default:"127.0.0.1:8000" yaml:"addr" toml:"addr"`
	// AllowOrigins lists CORS origins; "*" allows any
	AllowOrigins []string `envconfig:"INSPECTOR_ALLOW_ORIGINS" default:"*" yaml:"allow_origins" toml:"allow_origins"`
	// RateLimit is requests per second per client; 0 disables limiting
	RateLimit int `envconfig:"INSPECTOR_RATE_LIMIT" default:"50" yaml:"rate_limit" toml:"rate_limit"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment configuration and overlays a YAML or TOML
// file on top of it. Keys present in the file win over the environment.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.Cache.Compression {
	case "none", "zstd":
	default:
		return fmt.Errorf("cache compression must be none or zstd, got %q", c.Cache.Compression)
	}
	if c.Inventory.PageSize <= 0 || c.Inventory.BatchSize <= 0 || c.Inventory.BatchSize > 100 {
		return fmt.Errorf("inventory page size and batch size (max 100) must be positive")
	}
	if c.Inventory.InitialPages <= 0 || c.Inventory.MaxConcurrentPages < c.Inventory.InitialPages {
		return fmt.Errorf("inventory concurrency must satisfy 0 < initial_pages <= max_concurrent_pages")
	}
	if c.Inventory.PageCeiling <= 0 {
		return fmt.Errorf("inventory page ceiling must be positive")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "https://api.blockv.io",
			Timeout:         Duration(30 * time.Second),
			RetryMax:        3,
			BreakerFailures: 10,
		},
		Push: PushConfig{
			URL:          "wss://newws.blockv.io/ws",
			Enabled:      true,
			ReconnectMin: Duration(time.Second),
			ReconnectMax: Duration(30 * time.Second),
		},
		Cache: CacheConfig{
			Enabled:     true,
			Compression: "none",
			SaveDelay:   Duration(5 * time.Second),
		},
		Inventory: InventoryConfig{
			PageSize:           100,
			InitialPages:       4,
			MaxConcurrentPages: 32,
			PageCeiling:        100,
			BatchSize:          100,
			IndexPageSize:      1000,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Enabled:      true,
			Addr:         "127.0.0.1:8000",
			AllowOrigins: []string{"*"},
			RateLimit:    50,
		},
	}
}
