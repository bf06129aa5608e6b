// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "juicyid/pkg/platform/strings"
)

// Config is the full runtime configuration.
type Config struct {
	Addr string

	DatabaseURL string

	Redis RedisConfig

	Kafka KafkaConfig

	// JWTSigningKey verifies managed-account bearer tokens.
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// AnonSessionKey keys the HMAC that derives pseudo-addresses from
	// anonymous session ids. Rotating it rotates every pseudo-address.
	AnonSessionKey string

	// CustodialSeed feeds custodial address derivation for managed accounts.
	CustodialSeed string
}

// RedisConfig configures the wallet session store connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox relay producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv reads the configuration. Secrets have development defaults so a
// bare `go run` works; production deployments override them.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:        envOr("JUICYID_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: platformstrings.DedupeAndTrim(splitList(os.Getenv("KAFKA_BROKERS"))),
			Topic:   envOr("KAFKA_IDENTITY_TOPIC", "identity.events"),
		},
		JWTSigningKey:  envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      envOr("JWT_ISSUER", "juicyid"),
		JWTAudience:    envOr("JWT_AUDIENCE", "juicyid"),
		AnonSessionKey: envOr("ANON_SESSION_KEY", "dev-anon-key-change-in-production"),
		CustodialSeed:  envOr("CUSTODIAL_SEED", "dev-custodial-seed-change-in-production"),
	}

	if poolSize := os.Getenv("REDIS_POOL_SIZE"); poolSize != "" {
		n, err := strconv.Atoi(poolSize)
		if err != nil {
			return Config{}, fmt.Errorf("REDIS_POOL_SIZE: %w", err)
		}
		cfg.Redis.PoolSize = n
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
