package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"evalprof/internal/ratelimit"
	"evalprof/internal/store"
)

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// CookieSecure marks the device cookie Secure; enable behind TLS.
	CookieSecure bool `yaml:"cookie_secure"`
	// AdminToken guards /admin; empty disables those routes.
	AdminToken string `yaml:"admin_token"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

type StorageConfig struct {
	Backend Backend `yaml:"backend"`
	// QuotaBytes bounds the memory backend; 0 means unbounded.
	QuotaBytes int         `yaml:"quota_bytes"`
	Redis      RedisConfig `yaml:"redis"`
	Retry      RetryConfig `yaml:"retry"`
}

type CacheConfig struct {
	// SweepInterval runs ClearExpired periodically; 0 keeps expiry lazy.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RateLimitConfig struct {
	Policies      map[string]ratelimit.Policy `yaml:"policies"`
	SweepInterval time.Duration               `yaml:"sweep_interval"`
}

type SessionConfig struct {
	// Secret signs session tokens. When empty the server generates one at
	// startup and sessions do not survive a restart.
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Buffer int    `yaml:"buffer"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns a configuration that runs with the memory backend.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads path and fills every unset field. An empty path yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	c.applyDefaults()

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Storage.QuotaBytes == 0 {
		c.Storage.QuotaBytes = 5 << 20
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "evalprof:"
	}
	def := store.DefaultRetryPolicy()
	if c.Storage.Retry.MaxRetries == 0 {
		c.Storage.Retry.MaxRetries = def.MaxRetries
	}
	if c.Storage.Retry.BaseBackoff == 0 {
		c.Storage.Retry.BaseBackoff = def.BaseBackoff
	}
	if c.Storage.Retry.MaxBackoff == 0 {
		c.Storage.Retry.MaxBackoff = def.MaxBackoff
	}

	// configured policies override the defaults by name
	policies := ratelimit.DefaultPolicies()
	for name, p := range c.RateLimit.Policies {
		policies[name] = p
	}
	c.RateLimit.Policies = policies
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = time.Minute
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Buffer == 0 {
		c.Log.Buffer = 1000
	}
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return errors.New("invalid storage.backend; use memory|redis")
	}
	if c.Storage.QuotaBytes < 0 {
		return errors.New("storage.quota_bytes must not be negative")
	}
	if c.Storage.Retry.MaxRetries < 0 || c.Storage.Retry.BaseBackoff < 0 || c.Storage.Retry.MaxBackoff < 0 {
		return errors.New("storage.retry values must not be negative")
	}
	if c.Cache.SweepInterval < 0 || c.RateLimit.SweepInterval < 0 {
		return errors.New("sweep intervals must not be negative")
	}
	for name, p := range c.RateLimit.Policies {
		if p.MaxAttempts <= 0 || p.Window <= 0 {
			return fmt.Errorf("ratelimit policy %q needs positive max_attempts and window", name)
		}
	}
	if c.Session.TTL < 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Log.Buffer < 0 {
		return errors.New("log.buffer must not be negative")
	}
	return nil
}

// RetryPolicy converts the retry section for the store package.
func (c StorageConfig) RetryPolicy() store.RetryPolicy {
	p := store.DefaultRetryPolicy()
	p.MaxRetries = c.Retry.MaxRetries
	p.BaseBackoff = c.Retry.BaseBackoff
	p.MaxBackoff = c.Retry.MaxBackoff
	return p
}
