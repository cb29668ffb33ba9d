package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr     string
	DataDir        string
	BaseURL        string
	SessionSecret  string
	MaxUploadBytes int64
	LogLevel       string

	// Images above this size get no inline preview.
	MaxInlinePreviewBytes int64

	Analyzer         string
	AnalysisLatency  time.Duration
	ProgressDuration time.Duration
	ProgressTick     time.Duration
	ProgressGrace    time.Duration
	RandomSeed       uint64

	MaxSessions      int
	CleanupInterval  time.Duration
	UploadTTL        time.Duration
	SelectRatePerMin int
}

// Load reads the environment, after merging an optional .env file from the
// working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:     envOr("LISTEN_ADDR", ":8080"),
		DataDir:        envOr("DATA_DIR", "./data"),
		BaseURL:        envOr("BASE_URL", "http://localhost:8080"),
		SessionSecret:  envOr("SESSION_SECRET", "change-me-in-production-32-bytes!"),
		MaxUploadBytes: envInt64Or("MAX_UPLOAD_BYTES", 100*1024*1024),
		LogLevel:       envOr("LOG_LEVEL", "info"),

		MaxInlinePreviewBytes: envInt64Or("MAX_INLINE_PREVIEW_BYTES", 16*1024*1024),

		Analyzer:         envOr("ANALYZER", "simulated"),
		AnalysisLatency:  envDurationOr("ANALYSIS_LATENCY", 3500*time.Millisecond),
		ProgressDuration: envDurationOr("PROGRESS_DURATION", 3*time.Second),
		ProgressTick:     envDurationOr("PROGRESS_TICK", 50*time.Millisecond),
		ProgressGrace:    envDurationOr("PROGRESS_GRACE", 300*time.Millisecond),
		RandomSeed:       uint64(envInt64Or("RANDOM_SEED", 0)),

		MaxSessions:      envIntOr("MAX_SESSIONS", 1024),
		CleanupInterval:  time.Duration(envIntOr("CLEANUP_INTERVAL_MINS", 10)) * time.Minute,
		UploadTTL:        time.Duration(envIntOr("UPLOAD_TTL_MINS", 60)) * time.Minute,
		SelectRatePerMin: envIntOr("SELECT_RATE_PER_MIN", 30),
	}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
