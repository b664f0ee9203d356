// Package config loads the runtime configuration of the live service and
// worker from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/floroz/gavel-live/pkg/auth"
)

// ErrNoTokenKey is returned when neither JWT_SECRET nor JWT_PUBLIC_KEY_PATH
// is set
var ErrNoTokenKey = errors.New("JWT_SECRET or JWT_PUBLIC_KEY_PATH must be set")

// Config holds configuration knobs for the service and the worker.
type Config struct {
	HTTPAddr        string
	DatabaseURL     string // empty selects the in-memory ledger
	RabbitMQURL     string
	RedisURL        string
	JWTSecret       string
	JWTPublicKey    string // path to a PEM file
	JWTIssuer       string
	LockTimeout     time.Duration
	AllowedOrigins  []string
	SendBuffer      int
	OutboxBatchSize int
	OutboxInterval  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// LoadDotEnv reads .env.local then .env into the environment. Variables that
// are already set win, and missing files are ignored.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func durenv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func listenv(key, def string) []string {
	var out []string
	for _, v := range strings.Split(getenv(key, def), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func levelenv(key string, def slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getenv(key, ""))); err != nil {
		return def
	}
	return level
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getenv("LIVE_DB_URL", ""),
		RabbitMQURL:     getenv("RABBITMQ_URL", ""),
		RedisURL:        getenv("REDIS_URL", ""),
		JWTSecret:       getenv("JWT_SECRET", ""),
		JWTPublicKey:    getenv("JWT_PUBLIC_KEY_PATH", ""),
		JWTIssuer:       getenv("JWT_ISSUER", ""),
		LockTimeout:     durenv("LOCK_TIMEOUT", 3*time.Second),
		AllowedOrigins:  listenv("CORS_ORIGIN", "http://localhost:5173"),
		SendBuffer:      atoienv("SEND_BUFFER", 64),
		OutboxBatchSize: atoienv("OUTBOX_BATCH_SIZE", 10),
		OutboxInterval:  durenv("OUTBOX_INTERVAL", time.Second),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:        levelenv("LOG_LEVEL", slog.LevelInfo),
	}
}

// TokenSigner builds the token validator. An RS256 public key takes
// precedence over the HS256 shared secret.
func (c Config) TokenSigner() (*auth.Signer, error) {
	switch {
	case c.JWTPublicKey != "":
		pem, err := os.ReadFile(c.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
		return auth.NewSignerFromPublicKey(pem, c.JWTIssuer)
	case c.JWTSecret != "":
		return auth.NewHMACSigner([]byte(c.JWTSecret), c.JWTIssuer)
	default:
		return nil, ErrNoTokenKey
	}
}
