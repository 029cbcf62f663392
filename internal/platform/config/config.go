package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig captures connection settings for the payload cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	// BackgroundCheckRequired feeds every eligibility evaluation. Markets
	// without a background-check provider run with it off.
	BackgroundCheckRequired bool

	// PayloadCacheTTL bounds staleness of the read-side onboarding payload
	// cache. Gated writes never read the cache.
	PayloadCacheTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("ONRAMP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cacheTTL := 30 * time.Second
	if raw := os.Getenv("PAYLOAD_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cacheTTL = d
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "onramp.audit"
	}

	return Config{
		Addr:                    addr,
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		Redis:                   redisFromEnv(),
		KafkaBrokers:            brokers,
		AuditTopic:              auditTopic,
		JWTSigningKey:           jwtSigningKey,
		BackgroundCheckRequired: os.Getenv("BACKGROUND_CHECK_REQUIRED") == "true",
		PayloadCacheTTL:         cacheTTL,
	}
}

func redisFromEnv() RedisConfig {
	cfg := RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if raw := os.Getenv("REDIS_POOL_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.PoolSize = n
		}
	}
	return cfg
}
