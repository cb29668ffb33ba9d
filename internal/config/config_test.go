package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "MAX_UPLOAD_BYTES", "ANALYSIS_LATENCY", "PROGRESS_TICK", "RANDOM_SEED", "UPLOAD_TTL_MINS", "MAX_INLINE_PREVIEW_BYTES"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 3500*time.Millisecond, cfg.AnalysisLatency)
	assert.Equal(t, 50*time.Millisecond, cfg.ProgressTick)
	assert.Equal(t, uint64(0), cfg.RandomSeed)
	assert.Equal(t, time.Hour, cfg.UploadTTL)
	assert.Equal(t, int64(16*1024*1024), cfg.MaxInlinePreviewBytes)
	assert.False(t, cfg.SecureCookies())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("BASE_URL", "https://deepguard.example")
	t.Setenv("ANALYSIS_LATENCY", "250ms")
	t.Setenv("PROGRESS_DURATION", "1s")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("MAX_SESSIONS", "16")
	t.Setenv("CLEANUP_INTERVAL_MINS", "2")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.True(t, cfg.SecureCookies())
	assert.Equal(t, 250*time.Millisecond, cfg.AnalysisLatency)
	assert.Equal(t, time.Second, cfg.ProgressDuration)
	assert.Equal(t, uint64(42), cfg.RandomSeed)
	assert.Equal(t, 16, cfg.MaxSessions)
	assert.Equal(t, 2*time.Minute, cfg.CleanupInterval)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("ANALYSIS_LATENCY", "soon")
	t.Setenv("MAX_SESSIONS", "many")
	t.Setenv("MAX_UPLOAD_BYTES", "1e9")

	cfg := Load()
	assert.Equal(t, 3500*time.Millisecond, cfg.AnalysisLatency)
	assert.Equal(t, 1024, cfg.MaxSessions)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxUploadBytes)
}
