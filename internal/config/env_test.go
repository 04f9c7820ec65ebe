package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
    cfg := FromEnv()

    assert.Equal(t, "info", cfg.Logging.Level)
    assert.Equal(t, 30, cfg.Quota.DefaultPageLimit)
    assert.Equal(t, 168*time.Hour, cfg.Quota.ResetPeriod)
    assert.Equal(t, "uploads", cfg.Extractor.UploadDir)
    assert.Equal(t, "outputs", cfg.Extractor.OutputDir)
    assert.Equal(t, 4, cfg.Extractor.MaxConcurrent)
    assert.Equal(t, "8080", cfg.Server.Port)
}

func TestFromEnvOverrides(t *testing.T) {
    t.Setenv("DEFAULT_MONTHLY_PAGE_LIMIT", "100")
    t.Setenv("QUOTA_RESET_PERIOD", "24h")
    t.Setenv("MAX_CONCURRENT_RUNS", "2")
    t.Setenv("PORT", "9090")

    cfg := FromEnv()
    assert.Equal(t, 100, cfg.Quota.DefaultPageLimit)
    assert.Equal(t, 24*time.Hour, cfg.Quota.ResetPeriod)
    assert.Equal(t, 2, cfg.Extractor.MaxConcurrent)
    assert.Equal(t, "9090", cfg.Server.Port)
}

func TestParseHelpers(t *testing.T) {
    assert.Equal(t, 5, parseInt("5", 1))
    assert.Equal(t, 1, parseInt("x", 1))
    assert.True(t, parseBool("YES"))
    assert.False(t, parseBool("off"))
    assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
    assert.Equal(t, time.Minute, parseDuration("bogus", time.Minute))
}
