package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".climascope", "models"), c.ModelsDir)
	assert.Equal(t, "output", c.OutputDir)
	assert.Equal(t, "permissive", c.SchemaPolicy)
	assert.Equal(t, 3, c.Clusters)
	assert.Equal(t, 0.05, c.Contamination)
	assert.Equal(t, int64(42), c.RandomSeed)
	assert.Equal(t, 30, c.ForecastPeriods)
	assert.Equal(t, "years", c.ForecastUnit)
	assert.Equal(t, 0.8, c.IntervalWidth)
}

func TestSaveThenLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	require.NoError(t, err)
	c.Clusters = 5
	c.ForecastUnit = "days"
	c.MetricsFile = "/var/lib/node_exporter/climascope.prom"
	require.NoError(t, Save(c, ""))

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Clusters)
	assert.Equal(t, "days", got.ForecastUnit)
	assert.Equal(t, c.MetricsFile, got.MetricsFile)
}

func TestExplicitFileAndEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clusters: 7\nforecast_periods: 12\n"), 0o644))
	t.Setenv("CLIMASCOPE_FORECAST_PERIODS", "4")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Clusters)
	assert.Equal(t, 4, c.ForecastPeriods)
}
