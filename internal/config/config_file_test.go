package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveToFileWritesTOMLDurationsAsStrings(t *testing.T) {
	cfg := Default()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, cfg.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "request_timeout = '5m0s'") ||
		strings.Contains(string(data), `request_timeout = "5m0s"`), string(data))
}

func TestSaveToFileYAML(t *testing.T) {
	cfg := Default()
	cfg.Detector.Model = "detector"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "detector", loaded.Detector.Model)
	assert.Equal(t, cfg.Detector.RequestTimeout, loaded.Detector.RequestTimeout)
}

func TestGetConfigPath(t *testing.T) {
	assert.True(t, strings.HasSuffix(GetConfigPath(), "config.json"))
}
