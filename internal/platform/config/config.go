package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	LogFormat       string
	DatabaseURL     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// CORSOrigins lists browser origins allowed to call the API. Empty disables CORS.
	CORSOrigins []string

	Redis     RedisConfig
	Audit     AuditConfig
	Auth      AuthConfig
	Ledger    LedgerConfig
	RateLimit RateLimitConfig
}

// RedisConfig configures the optional Redis connection. Empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig configures the audit trail. Empty KafkaBrokers keeps events in-process.
type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
	Partitions   int32
	BufferSize   int
}

// AuthConfig configures admin bearer tokens.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

// LedgerConfig holds donation limits and idempotency settings.
type LedgerConfig struct {
	MaxDonationCents int64
	IdempotencyTTL   time.Duration
}

// RateLimitConfig budgets public writes per client IP.
type RateLimitConfig struct {
	Disabled         bool
	SubmissionsLimit int
	EngagementLimit  int
	Window           time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:            getEnv("MINDLINK_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CORSOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        getEnv("AUDIT_TOPIC", "mindlink.audit"),
			Partitions:   int32(getInt("AUDIT_TOPIC_PARTITIONS", 3)),
			BufferSize:   getInt("AUDIT_BUFFER_SIZE", 1024),
		},
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        getEnv("JWT_ISSUER", "mindlink"),
			Audience:      getEnv("JWT_AUDIENCE", "mindlink-admin"),
			TokenTTL:      getDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},
		Ledger: LedgerConfig{
			MaxDonationCents: getInt64("MAX_DONATION_CENTS", 100_000_000),
			IdempotencyTTL:   getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Disabled:         getBool("RATE_LIMIT_DISABLED", false),
			SubmissionsLimit: getInt("RATE_LIMIT_SUBMISSIONS", 5),
			EngagementLimit:  getInt("RATE_LIMIT_ENGAGEMENT", 30),
			Window:           getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
