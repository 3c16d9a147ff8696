package frameanalyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/frame-analyzer/internal/config"
	"github.com/menta2k/frame-analyzer/pkg/client"
	"github.com/menta2k/frame-analyzer/pkg/detection"
	"github.com/menta2k/frame-analyzer/pkg/llamacpp"
	"github.com/menta2k/frame-analyzer/pkg/ollama"
)

// NewClient creates the vision backend client named by cfg.Backend
func NewClient(cfg config.DetectorConfig) (client.VisionClient, error) {
	url := cfg.URL
	if url == "" {
		url = config.DefaultURL(cfg.Backend)
	}
	switch cfg.Backend {
	case config.BackendOllama, "":
		return ollama.NewClient(url, cfg.RequestTimeout.Std())
	case config.BackendLlamaCpp:
		return llamacpp.NewClient(url, cfg.RequestTimeout.Std())
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewLoader returns a loader that connects to the configured backend and binds
// a VisionDetector to cfg.Model
func NewLoader(cfg config.DetectorConfig, logger *slog.Logger) detection.Loader {
	return func(ctx context.Context) (detection.Detector, error) {
		c, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		d, err := detection.Load(ctx, c, detection.Options{
			Model:             cfg.Model,
			SendFormat:        cfg.SendFormat,
			SendSize:          cfg.SendSize,
			SendQuality:       cfg.SendQuality,
			Labels:            detection.NewLabelMap(cfg.Labels, cfg.StrictLabels),
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Info("model loaded", "backend", cfg.Backend, "model", d.Model())
		}
		return d, nil
	}
}
