package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig describes the real document database. An empty URI forces mock mode.
type DatabaseConfig struct {
	URI                    string        `mapstructure:"uri"`
	Name                   string        `mapstructure:"name"`
	ConnectTimeout         time.Duration `mapstructure:"connect_timeout"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout"`
	OperationTimeout       time.Duration `mapstructure:"operation_timeout"`
	MaxPoolSize            uint64        `mapstructure:"max_pool_size"`
	MinPoolSize            uint64        `mapstructure:"min_pool_size"`
	ConnectAttempts        int           `mapstructure:"connect_attempts"`
	ImageBucket            string        `mapstructure:"image_bucket"`
}

// StorageConfig describes the in-process mock store
type StorageConfig struct {
	SnapshotPath     string        `mapstructure:"snapshot_path"`
	ImageCacheTTL    time.Duration `mapstructure:"image_cache_ttl"`
	ImageCacheShards int           `mapstructure:"image_cache_shards"`
}

// ConcurrencyConfig contains concurrency settings
type ConcurrencyConfig struct {
	HTTPMaxRequests   int `mapstructure:"http_max_requests"`
	DBMaxConcurrentOp int `mapstructure:"db_max_concurrent_ops"`
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Get returns the loaded configuration, or defaults when Load was never called
func Get() *Config {
	mu.RLock()
	cfg := instance
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = Default()
	}
	return instance
}

// Default returns the configuration built from defaults alone
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from an optional YAML file and the environment
func Load(configPath string) error {
	cfg, err := load(configPath)
	if err != nil {
		return err
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()
	return nil
}

func load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind env vars: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// no uri by default: the mock store is used
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.server_selection_timeout", 5*time.Second)
	v.SetDefault("database.operation_timeout", 45*time.Second)
	v.SetDefault("database.max_pool_size", 10)
	v.SetDefault("database.min_pool_size", 0)
	v.SetDefault("database.connect_attempts", 1)
	v.SetDefault("database.image_bucket", "images")

	v.SetDefault("storage.snapshot_path", "data/mock-db.json")
	v.SetDefault("storage.image_cache_ttl", 0)
	v.SetDefault("storage.image_cache_shards", 16)

	v.SetDefault("concurrency.http_max_requests", 600)
	v.SetDefault("concurrency.db_max_concurrent_ops", 32)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.host":               {"APP_SERVER_HOST"},
		"server.port":               {"APP_SERVER_PORT", "PORT"},
		"database.uri":              {"APP_DATABASE_URI", "MONGODB_URI"},
		"database.name":             {"APP_DATABASE_NAME"},
		"database.max_pool_size":    {"APP_DATABASE_MAX_POOL_SIZE"},
		"database.connect_attempts": {"APP_DATABASE_CONNECT_ATTEMPTS"},
		"storage.snapshot_path":     {"APP_STORAGE_SNAPSHOT_PATH"},
		"storage.image_cache_ttl":   {"APP_STORAGE_IMAGE_CACHE_TTL"},
		"log.level":                 {"APP_LOG_LEVEL"},
		"log.development":           {"APP_LOG_DEVELOPMENT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return err
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	if cfg.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.ConnectTimeout <= 0 || cfg.Database.ServerSelectionTimeout <= 0 {
		return fmt.Errorf("database timeouts must be positive")
	}
	if cfg.Database.MaxPoolSize < 1 {
		return fmt.Errorf("database.max_pool_size must be at least 1")
	}
	if cfg.Database.MinPoolSize > cfg.Database.MaxPoolSize {
		return fmt.Errorf("database.min_pool_size must not exceed database.max_pool_size")
	}
	if cfg.Database.ConnectAttempts < 1 {
		return fmt.Errorf("database.connect_attempts must be at least 1")
	}

	if cfg.Storage.SnapshotPath == "" {
		return fmt.Errorf("storage.snapshot_path is required")
	}
	if cfg.Storage.ImageCacheTTL < 0 {
		return fmt.Errorf("storage.image_cache_ttl must be non-negative")
	}

	if cfg.Concurrency.HTTPMaxRequests < 1 {
		return fmt.Errorf("concurrency.http_max_requests must be at least 1")
	}
	if cfg.Concurrency.DBMaxConcurrentOp < 1 {
		return fmt.Errorf("concurrency.db_max_concurrent_ops must be at least 1")
	}
	return nil
}
