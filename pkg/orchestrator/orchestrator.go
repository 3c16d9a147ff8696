// Package orchestrator fans frames out to a detector through a bounded worker pool
// and collects one result per frame.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/menta2k/frame-analyzer/internal/logging"
	"github.com/menta2k/frame-analyzer/internal/utils"
	"github.com/menta2k/frame-analyzer/pkg/aggregate"
	"github.com/menta2k/frame-analyzer/pkg/detection"
	"github.com/menta2k/frame-analyzer/pkg/metrics"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

// DefaultMaxConcurrency is the worker pool size when none is configured
const DefaultMaxConcurrency = 4

// Options configures an Orchestrator
type Options struct {
	// MaxConcurrency bounds the number of concurrent detector calls
	MaxConcurrency int
	// FrameTimeout is the deadline for one detector call; zero disables it.
	// It starts once the call holds its detector, not while it waits for one.
	// The detector must honour context cancellation for a stalled call to end.
	FrameTimeout time.Duration
}

// Orchestrator runs batches of frames through a detector
type Orchestrator struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates an orchestrator; logger and m may be nil
func New(opts Options, logger *slog.Logger, m *metrics.Collector) *Orchestrator {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.FrameTimeout < 0 {
		opts.FrameTimeout = 0
	}
	return &Orchestrator{
		opts:    opts,
		logger:  logging.OrDiscard(logger).With("component", "orchestrator"),
		metrics: m,
	}
}

// MaxConcurrency returns the worker pool size
func (o *Orchestrator) MaxConcurrency() int {
	return o.opts.MaxConcurrency
}

// Run analyzes frames with det, which must already be loaded, and blocks until
// every dispatched frame has finished.
//
// A frame whose file is gone at dispatch time aborts the batch; frames already
// submitted still run to completion but their results are discarded. A detector
// failure on one frame only empties that frame's detections.
func (o *Orchestrator) Run(ctx context.Context, frames []types.Frame, det detection.Detector) types.BatchResult {
	start := time.Now()
	agg := aggregate.New(len(frames))
	det = detection.WithTimeout(det, o.opts.FrameTimeout)

	pool := newWorkerPool(ctx, o.opts.MaxConcurrency, func(ctx context.Context, j job) error {
		out := o.analyzeFrame(ctx, det, j.frame)
		agg.Add(j.index, out.FrameResult(j.frame.Filename))
		return nil
	})

	o.logger.Debug("dispatching frames", "frames", len(frames), "workers", pool.Size())

	for i, f := range frames {
		if !utils.PathExists(f.Path) {
			agg.Fatal(types.NewFatal(types.FatalPathVanished, nil, "Path to image does not exist: %s", f.Path))
			break
		}
		if err := pool.Submit(job{index: i, frame: f}); err != nil {
			agg.Fatal(types.NewFatal(types.FatalOrchestrator, err, "frame dispatch stopped: %v", err))
			break
		}
	}

	if err := pool.Wait(); err != nil {
		agg.Fatal(types.NewFatal(types.FatalOrchestrator, err, "worker pool failed: %v", err))
	}
	if err := ctx.Err(); err != nil {
		agg.Fatal(types.NewFatal(types.FatalOrchestrator, err, "batch cancelled: %v", err))
	}

	result := agg.Result()
	if result.IsFatal() {
		o.logger.Error("batch aborted", "kind", result.Err.Kind, "error", result.Err.Message)
		o.metrics.RecordBatch(result.Err.Kind.String())
	} else {
		o.logger.Info("batch complete", "frames", len(result.Frames), "duration", time.Since(start).Round(time.Millisecond))
		o.metrics.RecordBatch(metrics.OutcomeOK)
	}
	return result
}

// analyzeFrame is the unit-of-work boundary: every error or panic from the
// detector becomes a Failure for this frame only.
func (o *Orchestrator) analyzeFrame(ctx context.Context, det detection.Detector, f types.Frame) (out Outcome) {
	done := o.metrics.DetectStarted()
	defer func() {
		done()
		if r := recover(); r != nil {
			out = Failure(fmt.Errorf("detector panic: %v", r))
		}
		o.metrics.RecordFrame(out.OK())
		if !out.OK() {
			o.logger.Warn("frame analysis failed", "file", f.Filename, "error", out.Err)
		} else {
			o.logger.Debug("frame analyzed", "file", f.Filename, "detections", len(out.Detections))
		}
	}()

	detections, err := det.Detect(ctx, f.Path)
	if err != nil {
		return Failure(err)
	}
	return Success(detections)
}
