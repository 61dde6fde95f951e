package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_Validates(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 3, config.Batch.MaxWorkers)
	assert.Equal(t, "3s", config.Batch.MinInterval)
	assert.Equal(t, 10, config.Batch.SaveEvery)
	assert.Equal(t, 5.0, config.Extraction.MinPrice)
	assert.Equal(t, 500.0, config.Extraction.MaxPrice)
	assert.Equal(t, 0.10, config.Extraction.MinUpside)
	assert.Equal(t, 10.0, config.Extraction.MaxUpside)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[batch]
max_workers = 5
months_back = 6

[extraction]
high_upside_threshold = 50.0
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[batch]
max_workers = 8
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 8, config.Batch.MaxWorkers)
	assert.Equal(t, 6, config.Batch.MonthsBack)
	assert.Equal(t, 50.0, config.Extraction.HighUpsideThreshold)
	assert.Equal(t, "2s", config.Batch.BaseDelay, "defaults survive partial files")
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psuscan.toml")
	require.NoError(t, os.WriteFile(path, []byte("[batch]\nmax_workers = 5\n"), 0644))

	t.Setenv("PSUSCAN_MAX_WORKERS", "2")
	t.Setenv("PSUSCAN_LOG_OUTPUT", "stdout")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 2, config.Batch.MaxWorkers)
	assert.Equal(t, []string{"stdout"}, config.Logging.Output)
}

func TestLoadFromFiles_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[batch\nmax_workers ="), 0644))

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, FlagOverrides{
		Workers:    7,
		ResumeFrom: " aapl ",
		MaxTickers: 25,
		Fresh:      true,
	})

	assert.Equal(t, 7, config.Batch.MaxWorkers)
	assert.Equal(t, "AAPL", config.Batch.ResumeFrom)
	assert.Equal(t, 25, config.Batch.MaxTickers)
	assert.True(t, config.Batch.Fresh)
	assert.Equal(t, 3, config.Batch.MonthsBack, "zero flag leaves value untouched")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"too many workers", func(c *Config) { c.Batch.MaxWorkers = 50 }},
		{"zero workers", func(c *Config) { c.Batch.MaxWorkers = 0 }},
		{"bad duration", func(c *Config) { c.Batch.MinInterval = "soon" }},
		{"inverted price bounds", func(c *Config) { c.Extraction.MaxPrice = 1 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad schedule", func(c *Config) { c.Batch.Schedule = "every day" }},
		{"schedule too frequent", func(c *Config) { c.Batch.Schedule = "0 */5 * * * *" }},
		{"eodhd bad timeout", func(c *Config) {
			c.Providers.EODHD.APIKey = "k"
			c.Providers.EODHD.Timeout = "long"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestValidateSchedule_Daily(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 0 6 * * 1-5"))
	assert.NoError(t, ValidateSchedule("@daily"))
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("API_NINJAS_KEY", "")
	t.Setenv("PSUSCAN_NINJAS_API_KEY", "")

	key, err := ResolveAPIKey("from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("API_NINJAS_KEY", "from-env")
	key, err = ResolveAPIKey("from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("garbage", time.Minute))
}

func TestOutputPaths(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, filepath.Join("output", "batch_progress.json"), config.ProgressPath())

	config.Output.LogFile = filepath.Join("var", "log", "batch.log")
	assert.Equal(t, filepath.Join("var", "log", "batch.log"), config.LogPath())
}
