// Package annotate renders detections onto copies of the analyzed frames.
package annotate

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/frame-analyzer/internal/logging"
	"github.com/menta2k/frame-analyzer/internal/utils"
	"github.com/menta2k/frame-analyzer/pkg/processing"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

// Suffix is appended to the frame name of an annotated copy
const Suffix = "_boxes"

// Options configures an Annotator
type Options struct {
	Dir     string
	Format  string // png, jpg or webp; empty keeps the frame's own format
	Quality int
	Workers int
}

// Annotator draws the boxes of a batch onto its frames and saves the results
type Annotator struct {
	opts      Options
	processor *processing.Processor
	logger    *slog.Logger
}

// New creates an annotator writing into opts.Dir
func New(opts Options, logger *slog.Logger) *Annotator {
	if opts.Quality <= 0 {
		opts.Quality = 90
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Annotator{
		opts:      opts,
		processor: processing.NewProcessor(),
		logger:    logging.OrDiscard(logger).With("component", "annotate"),
	}
}

// Annotate writes one annotated copy per frame that has detections and returns
// how many were written. Fatal batches are skipped. Errors are logged per frame
// and never fail the call.
func (a *Annotator) Annotate(ctx context.Context, frames []types.Frame, result types.BatchResult) int {
	if result.IsFatal() || len(result.Frames) == 0 {
		return 0
	}
	if err := utils.EnsureDir(a.opts.Dir); err != nil {
		a.logger.Error("cannot create annotation directory", "dir", a.opts.Dir, "error", err)
		return 0
	}

	paths := make(map[string]string, len(frames))
	for _, f := range frames {
		paths[f.Filename] = f.Path
	}

	var written atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, fr := range result.Frames {
		if len(fr.Detections) == 0 {
			continue
		}
		src, ok := paths[fr.File]
		if !ok {
			a.logger.Warn("no source path for frame", "file", fr.File)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out, err := a.annotateFrame(src, fr.Detections)
			if err != nil {
				a.logger.Warn("annotation failed", "file", fr.File, "error", err)
				return nil
			}
			written.Add(1)
			a.logger.Debug("annotated frame", "file", fr.File, "output", out)
			return nil
		})
	}
	_ = g.Wait()
	return int(written.Load())
}

func (a *Annotator) annotateFrame(src string, detections []types.Detection) (string, error) {
	img, err := a.processor.LoadImage(src)
	if err != nil {
		return "", err
	}
	out := utils.GenerateOutputFilename(src, a.opts.Dir, Suffix, a.opts.Format)
	format := a.opts.Format
	if format == "" {
		format = outputFormat(out)
	}
	if err := a.processor.SaveImage(a.processor.DrawDetections(img, detections), out, format, a.opts.Quality); err != nil {
		return "", err
	}
	return out, nil
}

func outputFormat(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
