package config

// This file defines a Redis client constructor for the application.  Redis is
// used for distributed rate limiting and as a fast path for revoked token
// ids.  If the connection fails during startup, the constructor returns nil
// and callers degrade gracefully: the limiter falls back to process memory
// and revocation checks go straight to the database.

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
)

// RedisConfig carries the connection settings.  REDIS_ADDR is used when
// REDIS_HOST/REDIS_PORT are not both set.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED,default=true"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT"`
	Addr     string `env:"REDIS_ADDR,default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
	TLS      bool   `env:"REDIS_TLS,default=false"`
}

// LoadRedisConfig parses the Redis settings from the given lookuper.
func LoadRedisConfig(l envconfig.Lookuper) (RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.ProcessWith(context.Background(), &cfg, l); err != nil {
		return RedisConfig{}, fmt.Errorf("parsing redis env vars: %w", err)
	}
	return cfg, nil
}

// Address returns host:port for the configured server.
func (c RedisConfig) Address() string {
	if c.Host != "" && c.Port != "" {
		return net.JoinHostPort(c.Host, c.Port)
	}
	return c.Addr
}

// NewRedisClient instantiates a Redis client and pings it.  The returned
// client is nil when Redis is disabled or unreachable.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	addr := cfg.Address()
	var tlsConf *tls.Config
	if cfg.TLS {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
