package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PENDING_HOLD_TTL", "SWEEP_INTERVAL", "CURRENCY", "SEED_DATA", "LEGACY_SELF_EXCLUSION", "REDIS_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8070", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.HoldTTL)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "thb", cfg.Currency)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.True(t, cfg.SeedData)
	assert.False(t, cfg.LegacySelfExclusion)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PENDING_HOLD_TTL", "2h")
	t.Setenv("TIMEZONE", "Asia/Bangkok")
	t.Setenv("LEGACY_SELF_EXCLUSION", "true")
	t.Setenv("SEED_DATA", "false")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.HoldTTL)
	assert.Equal(t, "Asia/Bangkok", cfg.Location.String())
	assert.True(t, cfg.LegacySelfExclusion)
	assert.False(t, cfg.SeedData)
	assert.Contains(t, cfg.DSN(), "host=db.internal")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PENDING_HOLD_TTL", "soon"},
		{"SWEEP_INTERVAL", "-1m"},
		{"SEED_DATA", "maybe"},
		{"TIMEZONE", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("TIMEZONE", "UTC")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
