package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

const envDevelopment = "development"

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	StoreDriver string `env:"STORE_DRIVER, default=mongo"`
	SeedCatalog bool   `env:"SEED_CATALOG, default=true"`
	// BootstrapAdmin is promoted to Super Admin at startup when set.
	BootstrapAdmin string `env:"BOOTSTRAP_ADMIN_USER_ID"`

	JWT   JWTConfig
	Mongo MongoConfig
	Redis RedisConfig
	Cache CacheConfig
	Queue QueueConfig
	AMQP  AMQPConfig
}

type JWTConfig struct {
	Secret   string        `env:"JWT_SECRET"`
	Issuer   string        `env:"JWT_ISSUER,   default=access-core"`
	Audience string        `env:"JWT_AUDIENCE, default=campusgate"`
	TokenTTL time.Duration `env:"TOKEN_TTL,    default=24h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=access_core"`
}

// RedisConfig is optional: an empty address disables the decision cache and
// billing deduplication.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type CacheConfig struct {
	// AuthzTTL of zero disables the Redis decision cache.
	AuthzTTL time.Duration `env:"AUTHZ_CACHE_TTL, default=30s"`
	MenuTTL  time.Duration `env:"MENU_CACHE_TTL,  default=5m"`
	DedupTTL time.Duration `env:"DEDUP_TTL,       default=24h"`
}

type QueueConfig struct {
	Workers int `env:"QUEUE_WORKERS, default=4"`
}

// AMQPConfig is optional: an empty URI disables the billing consumer.
type AMQPConfig struct {
	URI string `env:"AMQP_URI"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the process runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, envDevelopment)
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.StoreDriver != DriverMongo && c.StoreDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, c.StoreDriver))
	}
	if c.JWT.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Queue.Workers < 1 {
		errs = append(errs, errors.New("QUEUE_WORKERS must be at least 1"))
	}
	if c.Cache.AuthzTTL < 0 || c.Cache.MenuTTL < 0 {
		errs = append(errs, errors.New("cache TTLs must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
