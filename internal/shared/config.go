package shared

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ErrMissingDSN is returned by Load when no connection string is configured.
var ErrMissingDSN = errors.New("MYSQL_DSN is not set; create a .env file or pass it via the environment")

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	HTTPTimeout time.Duration
	ExportRPS   int
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	LockTTL     time.Duration
	PushGateway string
	BatchSize   int
}

// Load reads the environment, after merging an optional .env file from the
// working directory. MYSQL_DSN is the only required variable.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env present but unreadable")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		HTTPTimeout: time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 0)) * time.Second,
		ExportRPS:   atoi("EXPORT_RPS", 0),
		MySQLDSN:    env("MYSQL_DSN", ""),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		LockTTL:     time.Duration(atoi("PIPELINE_LOCK_TTL_SECONDS", 900)) * time.Second,
		PushGateway: env("PUSHGATEWAY_URL", ""),
		BatchSize:   atoi("NORMALIZE_BATCH_SIZE", 500),
	}
	if c.MySQLDSN == "" {
		return c, ErrMissingDSN
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	return c, nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
