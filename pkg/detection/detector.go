package detection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/time/rate"

	"github.com/menta2k/frame-analyzer/pkg/client"
	"github.com/menta2k/frame-analyzer/pkg/processing"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

// DefaultPrompt is the default prompt for object detection
const DefaultPrompt = `You are an object detector.

List every distinct object visible in the image. Return JSON only:
{
  "objects": [
    {"label": "person", "box": [x_min, y_min, x_max, y_max]}
  ]
}

HARD RULES
- Coordinates are normalized to [0,1] relative to the image width and height (NOT pixels).
- x_min <= x_max and y_min <= y_max.
- One entry per object instance; boxes must tightly enclose the object.
- Labels are short lowercase common nouns (e.g. person, car, dog, traffic light).
- If nothing is visible, return {"objects": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector finds objects in one image.
//
// A single Detector is shared by every worker of a batch, so implementations
// must be safe for concurrent use. Wrap one that is not with Serialize, or
// provision one instance per worker with NewPool.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]types.Detection, error)
}

// DetectFunc adapts a function to the Detector interface
type DetectFunc func(ctx context.Context, imagePath string) ([]types.Detection, error)

func (f DetectFunc) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	return f(ctx, imagePath)
}

// Loader produces a ready Detector, the equivalent of loading model weights
type Loader func(ctx context.Context) (Detector, error)

// ErrNoModel is returned by Load when no weights reference was configured
var ErrNoModel = errors.New("no model (weights reference) configured")

// Options configures a VisionDetector
type Options struct {
	// Model is the weights reference passed to the backend
	Model string
	// Prompt overrides DefaultPrompt
	Prompt string

	SendFormat  string
	SendSize    int
	SendQuality int

	Labels *LabelMap
	// RequestsPerSecond caps calls to the backend; zero means unlimited
	RequestsPerSecond float64
}

// VisionDetector detects objects by asking a vision model backend about each frame.
// It keeps no per-call state and is safe for concurrent use.
type VisionDetector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
	limiter   *rate.Limiter
}

// Load checks that the backend can serve opts.Model and returns a detector bound to it
func Load(ctx context.Context, c client.VisionClient, opts Options) (*VisionDetector, error) {
	opts.Model = strings.TrimSpace(opts.Model)
	if opts.Model == "" {
		return nil, ErrNoModel
	}
	if err := c.CheckModel(ctx, opts.Model); err != nil {
		return nil, err
	}
	return NewVisionDetector(c, opts), nil
}

// NewVisionDetector creates a detector without probing the backend
func NewVisionDetector(c client.VisionClient, opts Options) *VisionDetector {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.SendFormat == "" {
		opts.SendFormat = "jpg"
	}
	if opts.SendQuality <= 0 {
		opts.SendQuality = 85
	}
	if opts.Labels == nil {
		opts.Labels = NewLabelMap(nil, true)
	}

	d := &VisionDetector{
		client:    c,
		processor: processing.NewProcessor(),
		opts:      opts,
	}
	if opts.RequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return d
}

// Model returns the weights reference the detector is bound to
func (d *VisionDetector) Model() string {
	return d.opts.Model
}

// Detect returns the objects found in the image at imagePath, boxes in source pixels
func (d *VisionDetector) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	img, err := d.processor.LoadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	bounds := img.Bounds()
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("load image: %s is empty", imagePath)
	}

	imgB64, err := d.processor.PrepareImageForModel(img, d.opts.SendFormat, d.opts.SendSize, d.opts.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reply, err := d.client.Query(ctx, d.opts.Model, d.opts.Prompt, imgB64)
	if err != nil {
		return nil, err
	}

	objects, err := parseObjects(reply)
	if err != nil {
		return nil, err
	}

	sentScale := sentScale(srcW, srcH, d.opts.SendSize)
	detections := make([]types.Detection, 0, len(objects))
	for _, o := range objects {
		class, ok := d.opts.Labels.Resolve(o.label())
		if !ok {
			continue
		}
		detections = append(detections, types.Detection{
			Box:   toPixelBox(o.box(), srcW, srcH, sentScale),
			Class: class,
		})
	}
	return detections, nil
}

// sentScale is the factor between the source image and the downscaled copy sent to the model
func sentScale(w, h float64, maxDim int) float64 {
	long := math.Max(w, h)
	if maxDim <= 0 || long <= float64(maxDim) {
		return 1
	}
	return long / float64(maxDim)
}

// toPixelBox maps a model box to source pixels. Normalized boxes are scaled by the
// source size; boxes with coordinates past 1 are taken as pixels of the image that
// was sent and scaled back up.
func toPixelBox(b []float64, w, h, scale float64) types.Box {
	x0, y0, x1, y1 := b[0], b[1], b[2], b[3]

	normalized := true
	for _, v := range b {
		if v > 1.0 {
			normalized = false
			break
		}
	}
	if normalized {
		x0, x1 = x0*w, x1*w
		y0, y1 = y0*h, y1*h
	} else {
		x0, y0, x1, y1 = x0*scale, y0*scale, x1*scale, y1*scale
	}

	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return types.Box{
		round2(clamp(x0, 0, w)),
		round2(clamp(y0, 0, h)),
		round2(clamp(x1, 0, w)),
		round2(clamp(y1, 0, h)),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
