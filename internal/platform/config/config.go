package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "crowngate/pkg/platform/strings"
)

// Server captures process-level configuration. Stores fall back to the
// in-memory implementations when PostgresDSN is empty, and the Redis-backed
// revocation list is only used when RedisURL is set.
type Server struct {
	Addr            string
	PostgresDSN     string
	RedisURL        string
	KafkaBrokers    []string
	KafkaAuditTopic string
	JWTSigningKey   string
	AccessTokenTTL  time.Duration
	AuditBuffer     int
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            getEnv("CROWNGATE_ADDR", ":8080"),
		PostgresDSN:     os.Getenv("CROWNGATE_POSTGRES_DSN"),
		RedisURL:        os.Getenv("CROWNGATE_REDIS_URL"),
		KafkaAuditTopic: getEnv("CROWNGATE_KAFKA_AUDIT_TOPIC", "crowngate.audit"),
		JWTSigningKey:   os.Getenv("CROWNGATE_JWT_SIGNING_KEY"),
		AccessTokenTTL:  getDuration("CROWNGATE_ACCESS_TOKEN_TTL", time.Hour),
		AuditBuffer:     getInt("CROWNGATE_AUDIT_BUFFER", 256),
	}

	if brokers := os.Getenv("CROWNGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	if cfg.JWTSigningKey == "" {
		// Development default; must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
