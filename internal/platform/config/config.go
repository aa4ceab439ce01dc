package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Storage backends are selected
// by presence: an empty DatabaseURL keeps the in-memory stores, an empty
// RedisURL keeps the in-memory schedule store, empty KafkaBrokers keeps the
// in-memory audit sink.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	SchedulerTick time.Duration
	AdminToken    string
	JWTSigningKey string
	RulesFeedDir  string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("JURISCALC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	tick := time.Hour
	if raw := os.Getenv("JURISCALC_SCHEDULER_TICK"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			tick = parsed
		}
	}

	topic := os.Getenv("JURISCALC_KAFKA_TOPIC")
	if topic == "" {
		topic = "juriscalc.audit"
	}

	var brokers []string
	if raw := os.Getenv("JURISCALC_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		SchedulerTick: tick,
		AdminToken:    os.Getenv("JURISCALC_ADMIN_TOKEN"),
		JWTSigningKey: jwtSigningKey,
		RulesFeedDir:  os.Getenv("JURISCALC_RULES_FEED_DIR"),
	}
}
