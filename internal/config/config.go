package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	RateServiceURL  string        `env:"RATE_SERVICE_URL,required"`
	RateServiceKey  string        `env:"RATE_SERVICE_KEY,required"`
	HTTPTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	RedisAddr       string        `env:"REDIS_ADDR,required"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	RedisTTL        time.Duration `env:"REDIS_TTL" envDefault:"24h"`
	DBHost          string        `env:"DB_HOST,required"`
	DBPort          int           `env:"DB_PORT,required"`
	DBUser          string        `env:"DB_USER,required"`
	DBPassword      string        `env:"DB_PASSWORD,required"`
	DBName          string        `env:"DB_NAME,required"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLife   time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdle   time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"2m"`
	RateSnapshotTTL time.Duration `env:"RATE_SNAPSHOT_TTL" envDefault:"5m"`
	RequoteInterval time.Duration `env:"REQUOTE_INTERVAL" envDefault:"15m"`
	ExportDir       string        `env:"EXPORT_DIR" envDefault:"reports"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RateSnapshotTTL <= 0 {
		return nil, fmt.Errorf("rate snapshot TTL must be positive")
	}

	return &cfg, nil
}
