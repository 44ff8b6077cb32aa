// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreREST     = "rest"
	StorePostgres = "postgres"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Secrets SecretsConfig `yaml:"secrets"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type StoreConfig struct {
	Type     string         `yaml:"type"`
	Redis    RedisConfig    `yaml:"redis"`
	REST     RESTConfig     `yaml:"rest"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	// URL takes precedence over Addr/Password/DB when set (redis:// or rediss://).
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RESTConfig points at a Redis REST endpoint such as Upstash.
type RESTConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type PostgresConfig struct {
	DSN           string        `yaml:"dsn"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type SecretsConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
	// MaxTTL of zero leaves expiry unbounded.
	MaxTTL      time.Duration `yaml:"max_ttl"`
	MaxFileSize int           `yaml:"max_file_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Store: StoreConfig{
			Type: StoreMemory,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
			REST: RESTConfig{
				Timeout: 10 * time.Second,
			},
			Postgres: PostgresConfig{
				SweepInterval: time.Minute,
			},
		},
		Secrets: SecretsConfig{
			DefaultTTL:  1 * time.Hour,
			MaxTTL:      0,
			MaxFileSize: 1024 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.Redis.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("UPSTASH_REDIS_REST_URL"); v != "" {
		c.Store.REST.URL = v
	}
	if v := os.Getenv("UPSTASH_REDIS_REST_TOKEN"); v != "" {
		c.Store.REST.Token = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Store.Postgres.DSN = v
	}

	if v := os.Getenv("DEFAULT_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Secrets.DefaultTTL = ttl
		}
	}
	if v := os.Getenv("MAX_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Secrets.MaxTTL = ttl
		}
	}
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Secrets.MaxFileSize = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate fails fast on anything the selected store backend would
// otherwise only discover on first use.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.URL == "" && c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr or url is required when store type is 'redis'")
		}
	case StoreREST:
		if c.Store.REST.URL == "" {
			return fmt.Errorf("rest url is required when store type is 'rest' (UPSTASH_REDIS_REST_URL)")
		}
		if c.Store.REST.Token == "" {
			return fmt.Errorf("rest token is required when store type is 'rest' (UPSTASH_REDIS_REST_TOKEN)")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required when store type is 'postgres'")
		}
		if c.Store.Postgres.SweepInterval <= 0 {
			return fmt.Errorf("postgres sweep_interval must be positive")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'redis', 'rest' or 'postgres')", c.Store.Type)
	}

	if c.Secrets.DefaultTTL < time.Second {
		return fmt.Errorf("default_ttl must be at least 1s")
	}

	if c.Secrets.MaxTTL != 0 && c.Secrets.MaxTTL < c.Secrets.DefaultTTL {
		return fmt.Errorf("max_ttl must be >= default_ttl")
	}

	if c.Secrets.MaxFileSize < 1 {
		return fmt.Errorf("max_file_size must be positive")
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
