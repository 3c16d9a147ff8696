package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/frame-analyzer/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Detector     DetectorConfig     `json:"detector" toml:"detector" yaml:"detector"`
	Orchestrator OrchestratorConfig `json:"orchestrator" toml:"orchestrator" yaml:"orchestrator"`
	Frames       FramesConfig       `json:"frames" toml:"frames" yaml:"frames"`
	Output       OutputConfig       `json:"output" toml:"output" yaml:"output"`
	Redis        RedisConfig        `json:"redis" toml:"redis" yaml:"redis"`
	Server       ServerConfig       `json:"server" toml:"server" yaml:"server"`
	Log          LogConfig          `json:"log" toml:"log" yaml:"log"`
	Metrics      MetricsConfig      `json:"metrics" toml:"metrics" yaml:"metrics"`
}

// DetectorConfig selects and tunes the detection backend
type DetectorConfig struct {
	Backend string `json:"backend" toml:"backend" yaml:"backend"`
	URL     string `json:"url" toml:"url" yaml:"url"`
	// Model is the weights reference handed to the backend. There is no built-in default.
	Model string `json:"model" toml:"model" yaml:"model"`

	SendFormat  string `json:"send_format" toml:"send_format" yaml:"send_format"`
	SendSize    int    `json:"send_size" toml:"send_size" yaml:"send_size"`
	SendQuality int    `json:"send_quality" toml:"send_quality" yaml:"send_quality"`

	Labels       []string `json:"labels" toml:"labels" yaml:"labels"`
	StrictLabels bool     `json:"strict_labels" toml:"strict_labels" yaml:"strict_labels"`

	Sharing           string   `json:"sharing" toml:"sharing" yaml:"sharing"`
	RequestsPerSecond float64  `json:"requests_per_second" toml:"requests_per_second" yaml:"requests_per_second"`
	RequestTimeout    Duration `json:"request_timeout" toml:"request_timeout" yaml:"request_timeout"`
}

// OrchestratorConfig bounds the worker pool
type OrchestratorConfig struct {
	MaxConcurrency int `json:"max_concurrency" toml:"max_concurrency" yaml:"max_concurrency"`
	// FrameTimeout turns a stalled detector call into a per-frame failure. Zero disables it.
	FrameTimeout Duration `json:"frame_timeout" toml:"frame_timeout" yaml:"frame_timeout"`
}

// FramesConfig controls which files count as frames
type FramesConfig struct {
	Extensions []string `json:"extensions" toml:"extensions" yaml:"extensions"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	WithStatus      bool   `json:"with_status" toml:"with_status" yaml:"with_status"`
	AnnotateDir     string `json:"annotate_dir" toml:"annotate_dir" yaml:"annotate_dir"`
	AnnotateFormat  string `json:"annotate_format" toml:"annotate_format" yaml:"annotate_format"`
	AnnotateQuality int    `json:"annotate_quality" toml:"annotate_quality" yaml:"annotate_quality"`
}

// RedisConfig configures the result store. An empty Addr disables it.
type RedisConfig struct {
	Addr      string   `json:"addr" toml:"addr" yaml:"addr"`
	Password  string   `json:"password" toml:"password" yaml:"password"`
	DB        int      `json:"db" toml:"db" yaml:"db"`
	KeyPrefix string   `json:"key_prefix" toml:"key_prefix" yaml:"key_prefix"`
	TTL       Duration `json:"ttl" toml:"ttl" yaml:"ttl"`
}

// ServerConfig configures serve mode
type ServerConfig struct {
	Listen string `json:"listen" toml:"listen" yaml:"listen"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `json:"level" toml:"level" yaml:"level"`
}

// MetricsConfig configures metric export
type MetricsConfig struct {
	Namespace string `json:"namespace" toml:"namespace" yaml:"namespace"`
	Textfile  string `json:"textfile" toml:"textfile" yaml:"textfile"`
}

const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"

	SharingShared     = "shared"
	SharingSerialized = "serialized"
	SharingPerWorker  = "per-worker"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:        BackendOllama,
			SendFormat:     "jpg",
			SendSize:       1280,
			SendQuality:    85,
			StrictLabels:   true,
			Sharing:        SharingShared,
			RequestTimeout: Duration(5 * time.Minute),
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrency: 4,
		},
		Frames: FramesConfig{
			Extensions: []string{".png", ".jpg"},
		},
		Output: OutputConfig{
			AnnotateFormat:  "png",
			AnnotateQuality: 90,
		},
		Redis: RedisConfig{
			KeyPrefix: "frame_analysis:",
		},
		Server: ServerConfig{
			Listen: ":8085",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "frame_analyzer",
		},
	}
}

// DefaultURL returns the conventional server URL of a backend
func DefaultURL(backend string) string {
	switch backend {
	case BackendLlamaCpp:
		return "http://localhost:8080"
	default:
		return "http://localhost:11434"
	}
}

// LoadFromFile loads configuration from a JSON, TOML or YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		err = toml.Unmarshal(data, config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a file; the format follows the extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		data, err = toml.Marshal(c)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("detector.backend must be %q or %q, got %q", BackendOllama, BackendLlamaCpp, c.Detector.Backend)
	}

	switch c.Detector.Sharing {
	case SharingShared, SharingSerialized, SharingPerWorker:
	default:
		return fmt.Errorf("detector.sharing must be one of %s, %s, %s", SharingShared, SharingSerialized, SharingPerWorker)
	}

	if c.Detector.SendQuality < 1 || c.Detector.SendQuality > 100 {
		return fmt.Errorf("detector.send_quality must be between 1 and 100")
	}

	if c.Detector.SendSize < 0 {
		return fmt.Errorf("detector.send_size must not be negative")
	}

	if c.Detector.RequestsPerSecond < 0 {
		return fmt.Errorf("detector.requests_per_second must not be negative")
	}

	if c.Orchestrator.MaxConcurrency < 1 {
		return fmt.Errorf("orchestrator.max_concurrency must be positive")
	}

	if c.Orchestrator.FrameTimeout < 0 {
		return fmt.Errorf("orchestrator.frame_timeout must not be negative")
	}

	if len(utils.NormalizeExtensions(c.Frames.Extensions)) == 0 {
		return fmt.Errorf("frames.extensions must name at least one extension")
	}

	switch strings.ToLower(c.Output.AnnotateFormat) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.annotate_format must be png, jpg or webp")
	}

	if c.Output.AnnotateQuality < 1 || c.Output.AnnotateQuality > 100 {
		return fmt.Errorf("output.annotate_quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "frame-analyzer", "config.json")
}
