package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsOverPooledWorkers(t *testing.T) {
	cfg := Default()
	cfg.MaxConnectionsPerWorker = 21
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedFlapThresholds(t *testing.T) {
	cfg := Default()
	cfg.FlapThreshold = 1
	cfg.FlapThresholdISP = 2
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveSchedulerPeriod(t *testing.T) {
	cfg := Default()
	cfg.CheckWorkerHealthPeriodSeconds = 0
	require.Error(t, cfg.Validate())
}

func TestLoadFileThenEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ping_period_seconds: 15\ntsdb_url: http://tsdb.internal\n"), 0o600))

	t.Setenv("WARDFLUX_SNMP_PERIOD_SECONDS", "45")
	t.Setenv("SNMP_FANOUT", "75")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.PingPeriodSeconds)
	assert.Equal(t, "http://tsdb.internal", cfg.TSDBURL)
	assert.Equal(t, 45, cfg.SNMPPeriodSeconds)
	assert.Equal(t, 75, cfg.SNMPFanout)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().PingPeriodSeconds, cfg.PingPeriodSeconds)
}
