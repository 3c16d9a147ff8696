package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "FRAME_ANALYZER_"

// Overrides carries the values set from the environment or the command line.
// A nil field leaves the configured value untouched.
type Overrides struct {
	Backend        *string
	URL            *string
	Model          *string
	Sharing        *string
	MaxConcurrency *int
	FrameTimeout   *time.Duration
	Extensions     []string
	WithStatus     *bool
	AnnotateDir    *string
	RedisAddr      *string
	Listen         *string
	LogLevel       *string
	MetricsFile    *string
}

// Apply copies every set field of o into c
func (c *Config) Apply(o Overrides) {
	setString(&c.Detector.Backend, o.Backend)
	setString(&c.Detector.URL, o.URL)
	setString(&c.Detector.Model, o.Model)
	setString(&c.Detector.Sharing, o.Sharing)
	setString(&c.Output.AnnotateDir, o.AnnotateDir)
	setString(&c.Redis.Addr, o.RedisAddr)
	setString(&c.Server.Listen, o.Listen)
	setString(&c.Log.Level, o.LogLevel)
	setString(&c.Metrics.Textfile, o.MetricsFile)

	if o.MaxConcurrency != nil {
		c.Orchestrator.MaxConcurrency = *o.MaxConcurrency
	}
	if o.FrameTimeout != nil {
		c.Orchestrator.FrameTimeout = Duration(*o.FrameTimeout)
	}
	if o.WithStatus != nil {
		c.Output.WithStatus = *o.WithStatus
	}
	if len(o.Extensions) > 0 {
		c.Frames.Extensions = append([]string(nil), o.Extensions...)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// EnvOverrides reads FRAME_ANALYZER_* variables through lookup (os.LookupEnv in production)
func EnvOverrides(lookup func(string) (string, bool)) (Overrides, error) {
	var o Overrides
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	str := func(name string) *string {
		if v, ok := get(name); ok {
			return &v
		}
		return nil
	}

	o.Backend = str("BACKEND")
	o.URL = str("URL")
	o.Model = str("MODEL")
	o.Sharing = str("SHARING")
	o.AnnotateDir = str("ANNOTATE_DIR")
	o.RedisAddr = str("REDIS_ADDR")
	o.Listen = str("LISTEN")
	o.LogLevel = str("LOG_LEVEL")
	o.MetricsFile = str("METRICS_FILE")

	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, fmt.Errorf("parse %sWORKERS: %w", EnvPrefix, err)
		}
		o.MaxConcurrency = &n
	}
	if v, ok := get("FRAME_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return o, fmt.Errorf("parse %sFRAME_TIMEOUT: %w", EnvPrefix, err)
		}
		o.FrameTimeout = &d
	}
	if v, ok := get("WITH_STATUS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, fmt.Errorf("parse %sWITH_STATUS: %w", EnvPrefix, err)
		}
		o.WithStatus = &b
	}
	if v, ok := get("EXTENSIONS"); ok {
		o.Extensions = strings.Split(v, ",")
	}

	return o, nil
}

// ApplyEnv applies FRAME_ANALYZER_* variables from the process environment
func (c *Config) ApplyEnv() error {
	o, err := EnvOverrides(os.LookupEnv)
	if err != nil {
		return err
	}
	c.Apply(o)
	return nil
}
