package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	HTTPPort     int
	DatabasePath string
	JWTSecret    string
	LogLevel     string
	CORSOrigins  []string
	Currency     string

	// StockMaxAttempts bounds compare-and-swap retries in the stock and
	// balance ledgers.
	StockMaxAttempts int

	// AuditInterval is how often the balance auditor runs. Zero disables it.
	AuditInterval time.Duration
}

// Load reads a .env file if one exists, then the environment, falling back
// to development defaults.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) Config {
	return Config{
		HTTPPort:         intOr(getenv("HTTP_PORT"), 8080),
		DatabasePath:     stringOr(getenv("DATABASE_PATH"), "shop.db"),
		JWTSecret:        stringOr(getenv("JWT_SECRET"), "dev_secret"),
		LogLevel:         stringOr(getenv("LOG_LEVEL"), "info"),
		CORSOrigins:      listOr(getenv("CORS_ORIGINS"), []string{"http://localhost:5173", "http://localhost:8080"}),
		Currency:         strings.ToUpper(stringOr(getenv("CURRENCY"), "INR")),
		StockMaxAttempts: intOr(getenv("STOCK_MAX_ATTEMPTS"), 3),
		AuditInterval:    durationOr(getenv("AUDIT_INTERVAL"), time.Hour),
	}
}

func stringOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func intOr(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func durationOr(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func listOr(v string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
