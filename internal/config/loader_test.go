package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, e := range os.Environ() {
		if len(e) > len(EnvPrefix) && e[:len(EnvPrefix)] == EnvPrefix {
			name, _, _ := cutFirst(e, '=')
			os.Unsetenv(name)
		}
	}
}

func cutFirst(s string, sep byte) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUARDIAN_MAX_RETRIES", "5")
	t.Setenv("GUARDIAN_QUALITY_MIN_OVERALL", "0.9")
	t.Setenv("GUARDIAN_PER_CALL_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 0.9, cfg.QualityMinOverall)
	assert.Equal(t, 2*time.Second, cfg.PerCallTimeout)
}

func TestLoad_RejectsNonNumeric(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUARDIAN_MAX_RETRIES", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_RETRIES")
}

func TestLoad_RejectsOutOfRangeProbability(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUARDIAN_QUALITY_MIN_OVERALL", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestLoad_AggregatesMultipleErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUARDIAN_MAX_RETRIES", "nope")
	t.Setenv("GUARDIAN_TOP_P", "3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_RETRIES")
	assert.Contains(t, err.Error(), "TOP_P")
}

func TestRecordDeadline(t *testing.T) {
	cfg := Default()
	cfg.PerCallTimeout = 1 * time.Second
	cfg.MaxRetries = 2
	got := cfg.RecordDeadline()
	assert.Equal(t, 9*time.Second+2*time.Second, got)
}
