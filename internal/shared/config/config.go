package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string
	Env             string
	JWTSecret       string

	QueueBackend  string
	AWSRegion     string
	SQSQueueURL   string
	RabbitMQURL   string
	RabbitMQQueue string

	LegacyBillingURL   string
	LegacyTokenURL     string
	LegacyClientID     string
	LegacyClientSecret string
	LegacyTimeout      time.Duration

	PolicyFile string
	Policy     Policy
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	policyFile := getEnv("BILLING_POLICY_FILE", "")
	policy, err := LoadPolicy(policyFile)
	if err != nil {
		log.Printf("billing policy %s: %v; using defaults", policyFile, err)
		policy = DefaultPolicy()
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		DatabaseURL:        dbURL,
		Env:                env,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		QueueBackend:       normalizeQueueBackend(getEnv("QUEUE_BACKEND", "none")),
		AWSRegion:          getEnv("AWS_REGION", "eu-west-2"),
		SQSQueueURL:        getEnv("BILLING_SQS_QUEUE_URL", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue:      getEnv("RABBITMQ_QUEUE", "bill-run-jobs"),
		LegacyBillingURL:   getEnv("LEGACY_BILLING_URL", ""),
		LegacyTokenURL:     getEnv("LEGACY_TOKEN_URL", ""),
		LegacyClientID:     getEnv("LEGACY_CLIENT_ID", ""),
		LegacyClientSecret: getEnv("LEGACY_CLIENT_SECRET", ""),
		LegacyTimeout:      getEnvDuration("LEGACY_TIMEOUT", 30*time.Second),
		PolicyFile:         policyFile,
		Policy:             policy,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("config %s invalid duration %q; using %s", key, raw, def)
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "rabbitmq", "amqp":
		return "rabbitmq"
	default:
		return "none"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks and header identities.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
