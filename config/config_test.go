package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFileOrFlags(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gostatsd.ini")
	require.NoError(t, os.WriteFile(path, []byte("[statsd]\npercent-threshold=95\nlegacy-namespace=false\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 95, cfg.PercentThreshold)
	assert.False(t, cfg.LegacyNamespace)
	assert.Equal(t, Defaults().ListenAddr, cfg.ListenAddr)
}

func TestLoadFileMissingStatsdSectionErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gostatsd.ini")
	require.NoError(t, os.WriteFile(path, []byte("percent-threshold=95\n"), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gostatsd.ini")
	require.NoError(t, os.WriteFile(path, []byte("[statsd]\npercent-threshold=95\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Set("percent-threshold", "99"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.PercentThreshold)
}

func TestProcessorConfigTranslation(t *testing.T) {
	cfg := Defaults()
	cfg.LegacyNamespace = false
	pc := cfg.ProcessorConfig()
	assert.Equal(t, cfg.MessagePrefix, pc.MessagePrefix)
	assert.Equal(t, cfg.PercentThreshold, pc.PercentThreshold)
	assert.Equal(t, cfg.FlushInterval.Milliseconds(), pc.FlushIntervalMillis)
}
