package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// RateLimitConfig tunes the token bucket that guards credential and
// verification-code endpoints.  Capacity is the burst size; RefillTokens are
// added every RefillInterval.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED,default=true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY,default=10"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS,default=1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=30s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL,default=10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY,default=ip_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX,default=rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG,default=false"`
}

// LoadRateLimitConfig parses the limiter settings and clamps them to sane
// minimums.
func LoadRateLimitConfig(l envconfig.Lookuper) (RateLimitConfig, error) {
	var def RateLimitConfig
	if err := envconfig.ProcessWith(context.Background(), &def, l); err != nil {
		return RateLimitConfig{}, fmt.Errorf("parsing rate limit env vars: %w", err)
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def, nil
}
