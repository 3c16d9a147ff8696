package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendOllama, cfg.Detector.Backend)
	assert.Empty(t, cfg.Detector.Model, "the weights reference must be configured explicitly")
	assert.Equal(t, 4, cfg.Orchestrator.MaxConcurrency)
	assert.Zero(t, cfg.Orchestrator.FrameTimeout)
	assert.Equal(t, []string{".png", ".jpg"}, cfg.Frames.Extensions)
	assert.False(t, cfg.Output.WithStatus)
	assert.Equal(t, SharingShared, cfg.Detector.Sharing)
}

func TestLoadFromFileFormats(t *testing.T) {
	files := map[string]string{
		"config.json": `{
  "detector": {"backend": "llamacpp", "model": "yolo-vl", "request_timeout": "45s"},
  "orchestrator": {"max_concurrency": 8, "frame_timeout": "10s"},
  "frames": {"extensions": [".png"]}
}`,
		"config.toml": `
[detector]
backend = "llamacpp"
model = "yolo-vl"
request_timeout = "45s"

[orchestrator]
max_concurrency = 8
frame_timeout = "10s"

[frames]
extensions = [".png"]
`,
		"config.yaml": `
detector:
  backend: llamacpp
  model: yolo-vl
  request_timeout: 45s
orchestrator:
  max_concurrency: 8
  frame_timeout: 10s
frames:
  extensions: [".png"]
`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			cfg, err := LoadFromFile(path)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			assert.Equal(t, BackendLlamaCpp, cfg.Detector.Backend)
			assert.Equal(t, "yolo-vl", cfg.Detector.Model)
			assert.Equal(t, 45*time.Second, cfg.Detector.RequestTimeout.Std())
			assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrency)
			assert.Equal(t, 10*time.Second, cfg.Orchestrator.FrameTimeout.Std())
			assert.Equal(t, []string{".png"}, cfg.Frames.Extensions)

			// keys absent from the file keep their defaults
			assert.Equal(t, 85, cfg.Detector.SendQuality)
			assert.Equal(t, "frame_analysis:", cfg.Redis.KeyPrefix)
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)

	badDuration := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(badDuration, []byte("[orchestrator]\nframe_timeout = \"soon\"\n"), 0o644))
	_, err = LoadFromFile(badDuration)
	assert.Error(t, err)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Detector.Model = "qwen2.5vl:7b"
	cfg.Orchestrator.FrameTimeout = Duration(30 * time.Second)

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Detector.Backend = "onnx" }},
		{"unknown sharing", func(c *Config) { c.Detector.Sharing = "pooled" }},
		{"zero workers", func(c *Config) { c.Orchestrator.MaxConcurrency = 0 }},
		{"negative timeout", func(c *Config) { c.Orchestrator.FrameTimeout = Duration(-time.Second) }},
		{"no extensions", func(c *Config) { c.Frames.Extensions = nil }},
		{"blank extensions", func(c *Config) { c.Frames.Extensions = []string{"", "  "} }},
		{"send quality", func(c *Config) { c.Detector.SendQuality = 0 }},
		{"send size", func(c *Config) { c.Detector.SendSize = -1 }},
		{"rate", func(c *Config) { c.Detector.RequestsPerSecond = -2 }},
		{"annotate format", func(c *Config) { c.Output.AnnotateFormat = "gif" }},
		{"annotate quality", func(c *Config) { c.Output.AnnotateQuality = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"FRAME_ANALYZER_BACKEND":       "llamacpp",
		"FRAME_ANALYZER_MODEL":         "detector-v2",
		"FRAME_ANALYZER_WORKERS":       "2",
		"FRAME_ANALYZER_FRAME_TIMEOUT": "1m",
		"FRAME_ANALYZER_WITH_STATUS":   "true",
		"FRAME_ANALYZER_EXTENSIONS":    ".png",
		"FRAME_ANALYZER_URL":           "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	o, err := EnvOverrides(lookup)
	require.NoError(t, err)

	cfg := Default()
	cfg.Apply(o)

	assert.Equal(t, BackendLlamaCpp, cfg.Detector.Backend)
	assert.Equal(t, "detector-v2", cfg.Detector.Model)
	assert.Empty(t, cfg.Detector.URL, "blank values are ignored")
	assert.Equal(t, 2, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, time.Minute, cfg.Orchestrator.FrameTimeout.Std())
	assert.True(t, cfg.Output.WithStatus)
	assert.Equal(t, []string{".png"}, cfg.Frames.Extensions)
}

func TestEnvOverridesInvalid(t *testing.T) {
	for _, key := range []string{"WORKERS", "FRAME_TIMEOUT", "WITH_STATUS"} {
		lookup := func(k string) (string, bool) {
			if k == EnvPrefix+key {
				return "not-a-value", true
			}
			return "", false
		}
		_, err := EnvOverrides(lookup)
		assert.Error(t, err, key)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FRAME_ANALYZER_LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyLeavesUnsetFields(t *testing.T) {
	cfg := Default()
	cfg.Detector.Model = "from-file"

	workers := 6
	cfg.Apply(Overrides{MaxConcurrency: &workers})

	assert.Equal(t, "from-file", cfg.Detector.Model)
	assert.Equal(t, 6, cfg.Orchestrator.MaxConcurrency)
}

func TestDefaultURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", DefaultURL(BackendOllama))
	assert.Equal(t, "http://localhost:8080", DefaultURL(BackendLlamaCpp))
}
