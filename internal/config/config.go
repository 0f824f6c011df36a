package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phantomlimb717/IPTV-Manager-Pro/internal/datadir"
)

// Config holds checker + daemon settings. Load from env and/or a .env file.
// The struct is immutable for the duration of a batch run; nothing in the
// engine mutates it.
type Config struct {
	// DBPath is the sqlite entries database. Defaults to the per-user data dir.
	DBPath string

	// ListenAddr serves /healthz and /metrics in `run` mode. Empty disables it.
	ListenAddr string

	// CheckInterval is how often `run` mode re-checks all entries.
	CheckInterval time.Duration

	// RequestDelay is the pause between accounts in a batch. Keeps the checker
	// a polite guest on provider infrastructure.
	RequestDelay time.Duration

	// APITimeout bounds every API request issued during a check.
	APITimeout time.Duration

	// UserAgent sent on Xtream API calls. Stalker calls always use the MAG
	// firmware string (part of the protocol compatibility surface).
	UserAgent string

	// StalkerTimezone is the timezone cookie sent to Stalker portals.
	StalkerTimezone string

	// StreamCheck enables the tier-2 stream reachability probe after a
	// successful Xtream credential check. Off by default: it downloads real
	// stream bytes.
	StreamCheck bool

	// StreamSpeedFloor is the minimum observed download rate (MB/s) for a
	// stream to count as alive in the tier-2 probe.
	StreamSpeedFloor float64
}

const (
	defaultUserAgent = "IPTV Manager Pro/0.3 (okhttp/3.12.1)"
	defaultTimezone  = "Europe/London"
)

// Load builds a Config from environment variables with defaults suitable for
// a headless checker.
func Load() *Config {
	c := &Config{
		DBPath:           getEnv("CHECKER_DB_PATH", ""),
		ListenAddr:       getEnv("CHECKER_LISTEN_ADDR", ":5090"),
		CheckInterval:    getEnvDuration("CHECKER_INTERVAL", 12*time.Hour),
		RequestDelay:     getEnvDuration("CHECKER_REQUEST_DELAY", 200*time.Millisecond),
		APITimeout:       getEnvDuration("CHECKER_API_TIMEOUT", 10*time.Second),
		UserAgent:        getEnv("CHECKER_USER_AGENT", defaultUserAgent),
		StalkerTimezone:  getEnv("CHECKER_STALKER_TZ", defaultTimezone),
		StreamCheck:      getEnvBool("CHECKER_STREAM_CHECK", false),
		StreamSpeedFloor: getEnvFloat("CHECKER_STREAM_SPEED_FLOOR", 0.05),
	}
	if c.DBPath == "" {
		c.DBPath = datadir.DBPath()
	}
	if c.CheckInterval < time.Minute {
		c.CheckInterval = time.Minute
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 10 * time.Second
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
