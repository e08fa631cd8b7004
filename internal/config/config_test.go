package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
bridge:
  driver: replay
  replay:
    path: samples.jsonl
alarm:
  high: 0.6
  low: 0.3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "replay", cfg.Bridge.Driver)
	assert.Equal(t, 0.6, cfg.Alarm.High)
	assert.Equal(t, 25, cfg.Calibration.Steps)
	assert.Equal(t, 20, cfg.History.Size)
	assert.Equal(t, 15*time.Second, cfg.Dashboard.Interval)
	assert.Equal(t, HumidityRelative, cfg.Humidity.Model)
	assert.Equal(t, "Normal Air", cfg.Classifier.NominalName)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"calibration":{"steps":10},"humidity":{"model":"absolute"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Calibration.Steps)
	assert.Equal(t, HumidityAbsolute, cfg.Humidity.Model)
}

func TestLoadRejectsInvertedHysteresis(t *testing.T) {
	path := writeFile(t, "config.yaml", "alarm:\n  high: 0.2\n  low: 0.3\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "alarm.low")

	// the VOC index never drops below 0.1, so a low threshold at the floor
	// would hold ALARM forever
	for _, low := range []string{"0.1", "0.05"} {
		path = writeFile(t, "config.yaml", "alarm:\n  high: 0.45\n  low: "+low+"\n")
		_, err = Load(path)
		assert.ErrorContains(t, err, "VOC floor", "low=%s", low)
	}
}

func TestLoadRejectsUnreachableZThreshold(t *testing.T) {
	path := writeFile(t, "config.yaml", "history:\n  size: 10\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "z_threshold")

	path = writeFile(t, "config.yaml", "history:\n  size: 8\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "anomaly_min_samples")

	path = writeFile(t, "config.yaml", "history:\n  size: 11\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Greater(t, MaxZScore(cfg.History.Size), cfg.Alarm.ZThreshold)
}

func TestMaxZScore(t *testing.T) {
	assert.InDelta(t, 2.846, MaxZScore(10), 1e-3)
	assert.InDelta(t, 3.015, MaxZScore(11), 1e-3)
	assert.Equal(t, 0.0, MaxZScore(1))
}

func TestLoadRejectsUnknownHumidityModel(t *testing.T) {
	path := writeFile(t, "config.yaml", "humidity:\n  model: wet\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "   \n"))
	assert.Error(t, err)
}

func TestSaveRoundTripsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Alarm.High = 0.5
	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, loaded.Alarm.High)
	assert.Equal(t, cfg.History.Horizon, loaded.History.Horizon)
}

func TestManagerReload(t *testing.T) {
	path := writeFile(t, "config.yaml", "alarm:\n  high: 0.45\n  low: 0.25\n")
	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 0.45, m.Get().Alarm.High)

	require.NoError(t, os.WriteFile(path, []byte("alarm:\n  high: 0.7\n  low: 0.25\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	needs, err := m.NeedsReload()
	require.NoError(t, err)
	assert.True(t, needs)

	cfg, err := m.Reload()
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Alarm.High)
	assert.Equal(t, 0.7, m.Get().Alarm.High)
}

func TestSecretFallsBackToEnv(t *testing.T) {
	t.Setenv("AIRGUARD_TEST_KEY", "from-env")
	assert.Equal(t, "inline", Secret("inline", "AIRGUARD_TEST_KEY"))
	assert.Equal(t, "from-env", Secret("", "AIRGUARD_TEST_KEY"))
	assert.Equal(t, "", Secret("", ""))
}
