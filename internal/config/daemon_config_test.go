package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoadConfig_OverlaysYAMLOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := []byte("daemon:\n  poll_interval: 15\n  mode: passthrough\n")
	require.NoError(t, os.WriteFile(path, yamlBody, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Daemon.PollIntervalSec)
	assert.Equal(t, ModePassthrough, cfg.Daemon.Mode)
	// Unspecified fields keep their default value.
	assert.Equal(t, 4, cfg.Daemon.ResetHour)
}

func TestLoadConfig_RejectsInvalidModeAfterParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  mode: bogus\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositivePollInterval(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Daemon.PollIntervalSec = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsResetHourOutOfRange(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Daemon.ResetHour = 24
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyDBPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Daemon.DBPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsEveryKnownMode(t *testing.T) {
	for _, m := range []Mode{ModeNormal, ModePassthrough, ModeStrict} {
		cfg := NewDefaultConfig()
		cfg.Daemon.Mode = m
		assert.NoError(t, cfg.Validate())
	}
}

func TestPollIntervalAndGracePeriod_ConvertSecondsToDuration(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Daemon.PollIntervalSec = 30
	cfg.Daemon.GracePeriodSeconds = 300
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 300*time.Second, cfg.GracePeriod())
}
