// Package frameanalyzer runs object detection over directories of video frames.
//
// A batch lists the eligible frames of one directory, fans them out to a
// detector through a bounded worker pool and returns one result per frame,
// or a single fatal error when the batch could not run at all.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"os"
//
//		frameanalyzer "github.com/menta2k/frame-analyzer"
//		"github.com/menta2k/frame-analyzer/internal/config"
//	)
//
//	func main() {
//		cfg := config.Default()
//		cfg.Detector.Model = "qwen2.5vl:7b"
//
//		fa, err := frameanalyzer.New(cfg, nil)
//		if err != nil {
//			panic(err)
//		}
//
//		result := fa.AnalyzeDirectory(context.Background(), "/data/frames")
//		_ = fa.Formatter().Write(os.Stdout, result)
//	}
//
// The package consists of these components:
//
//  1. Frames (pkg/frames): lists eligible frame files of a directory
//  2. Detection (pkg/detection): loads and calls the object detector
//  3. Orchestrator (pkg/orchestrator): bounded fan-out, per-frame failure isolation, fan-in
//  4. Aggregate (pkg/aggregate): merges per-frame outcomes into one batch result
//  5. Response (pkg/response): encodes the batch into the JSON wire format
//
// Frames that fail analysis are reported with no detections. Only a detector
// that cannot be loaded, a missing directory, a frame that disappears before
// dispatch or a failure of the worker pool itself abort the batch.
package frameanalyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/menta2k/frame-analyzer/internal/config"
	"github.com/menta2k/frame-analyzer/internal/logging"
	"github.com/menta2k/frame-analyzer/pkg/annotate"
	"github.com/menta2k/frame-analyzer/pkg/detection"
	"github.com/menta2k/frame-analyzer/pkg/frames"
	"github.com/menta2k/frame-analyzer/pkg/metrics"
	"github.com/menta2k/frame-analyzer/pkg/orchestrator"
	"github.com/menta2k/frame-analyzer/pkg/response"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

// Version of the frame analyzer
const Version = "1.0.0"

// Analyzer runs frame analysis batches
type Analyzer struct {
	cfg          *config.Config
	lister       *frames.Lister
	orchestrator *orchestrator.Orchestrator
	loader       detection.Loader
	formatter    response.Formatter
	annotator    *annotate.Annotator
	metrics      *metrics.Collector
	logger       *slog.Logger
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithLoader replaces the configured detector backend
func WithLoader(load detection.Loader) Option {
	return func(a *Analyzer) {
		a.loader = load
	}
}

// WithMetrics records batch metrics on m
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// New creates an Analyzer from cfg; logger may be nil
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger = logging.OrDiscard(logger)

	a := &Analyzer{
		cfg:       cfg,
		lister:    frames.NewLister(cfg.Frames.Extensions),
		formatter: response.Formatter{WithStatus: cfg.Output.WithStatus},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loader == nil {
		a.loader = NewLoader(cfg.Detector, logger)
	}

	a.orchestrator = orchestrator.New(orchestrator.Options{
		MaxConcurrency: cfg.Orchestrator.MaxConcurrency,
		FrameTimeout:   cfg.Orchestrator.FrameTimeout.Std(),
	}, logger, a.metrics)

	if cfg.Output.AnnotateDir != "" {
		a.annotator = annotate.New(annotate.Options{
			Dir:     cfg.Output.AnnotateDir,
			Format:  cfg.Output.AnnotateFormat,
			Quality: cfg.Output.AnnotateQuality,
			Workers: a.orchestrator.MaxConcurrency(),
		}, logger)
	}
	return a, nil
}

// Formatter returns the response formatter matching the configuration
func (a *Analyzer) Formatter() response.Formatter {
	return a.formatter
}

// Metrics returns the collector, or nil when metrics are disabled
func (a *Analyzer) Metrics() *metrics.Collector {
	return a.metrics
}

// AnalyzeDirectory runs one batch over the frames in dir.
// The detector is loaded once per call, before the directory is listed.
func (a *Analyzer) AnalyzeDirectory(ctx context.Context, dir string) types.BatchResult {
	logger := a.logger.With("dir", dir)

	det, err := detection.Provision(ctx, detection.Sharing(a.cfg.Detector.Sharing), a.orchestrator.MaxConcurrency(), a.loader)
	if err != nil {
		return a.fatal(logger, types.NewFatal(types.FatalModelLoad, err, "Failed to load model: %v", err))
	}

	list, err := a.lister.List(dir)
	if err != nil {
		var fe *types.FatalError
		if !errors.As(err, &fe) {
			fe = types.NewFatal(types.FatalDirectoryNotFound, err, "%v", err)
		}
		return a.fatal(logger, fe)
	}
	logger.Info("analyzing frames", "frames", len(list), "extensions", a.lister.Extensions())

	result := a.orchestrator.Run(ctx, list, det)

	if a.annotator != nil && !result.IsFatal() {
		n := a.annotator.Annotate(ctx, list, result)
		logger.Info("annotated frames", "written", n, "dir", a.cfg.Output.AnnotateDir)
	}
	return result
}

// Analyze runs AnalyzeDirectory and encodes the result
func (a *Analyzer) Analyze(ctx context.Context, dir string) ([]byte, error) {
	return a.formatter.Format(a.AnalyzeDirectory(ctx, dir))
}

func (a *Analyzer) fatal(logger *slog.Logger, err *types.FatalError) types.BatchResult {
	logger.Error("batch aborted", "kind", err.Kind, "error", err.Message)
	a.metrics.RecordBatch(err.Kind.String())
	return types.Fatal(err)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
