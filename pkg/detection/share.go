package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/menta2k/frame-analyzer/pkg/types"
)

// Sharing decides how workers reach the detector
type Sharing string

const (
	// Shared calls one instance from every worker; it must be safe for concurrent use
	Shared Sharing = "shared"
	// Serialized calls one instance, one call at a time
	Serialized Sharing = "serialized"
	// PerWorker loads one instance per worker
	PerWorker Sharing = "per-worker"
)

// Serialize lets only one Detect of d run at a time.
// A caller waiting for its turn gives up when ctx is done.
func Serialize(d Detector) Detector {
	return &serialized{turn: make(chan struct{}, 1), d: d}
}

type serialized struct {
	turn    chan struct{}
	d       Detector
	timeout time.Duration
}

func (s *serialized) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.turn }()
	return callWithTimeout(ctx, s.timeout, s.d, imagePath)
}

// Pool hands each call its own detector instance
type Pool struct {
	free    chan Detector
	size    int
	timeout time.Duration
}

// NewPool loads size instances with load
func NewPool(ctx context.Context, size int, load Loader) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{free: make(chan Detector, size), size: size}
	for i := 0; i < size; i++ {
		d, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("instance %d/%d: %w", i+1, size, err)
		}
		p.free <- d
	}
	return p, nil
}

// Size returns the number of instances
func (p *Pool) Size() int {
	return p.size
}

// Detect checks out a free instance for the duration of one call
func (p *Pool) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	var d Detector
	select {
	case d = <-p.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.free <- d }()
	return callWithTimeout(ctx, p.timeout, d, imagePath)
}

// WithTimeout bounds every Detect of d to timeout. The deadline starts once the
// call holds its instance, so time spent waiting behind a Serialize turn or for a
// free Pool instance does not count. A timeout of zero or less returns d unchanged.
func WithTimeout(d Detector, timeout time.Duration) Detector {
	if timeout <= 0 {
		return d
	}
	switch v := d.(type) {
	case *serialized:
		return &serialized{turn: v.turn, d: v.d, timeout: timeout}
	case *Pool:
		return &Pool{free: v.free, size: v.size, timeout: timeout}
	default:
		return &timed{d: d, timeout: timeout}
	}
}

type timed struct {
	d       Detector
	timeout time.Duration
}

func (t *timed) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	return callWithTimeout(ctx, t.timeout, t.d, imagePath)
}

func callWithTimeout(ctx context.Context, timeout time.Duration, d Detector, imagePath string) ([]types.Detection, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.Detect(ctx, imagePath)
}

// Provision loads the detector for one batch according to mode.
// workers is the pool size used by PerWorker.
func Provision(ctx context.Context, mode Sharing, workers int, load Loader) (Detector, error) {
	switch mode {
	case "", Shared:
		return load(ctx)
	case Serialized:
		d, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return Serialize(d), nil
	case PerWorker:
		return NewPool(ctx, workers, load)
	default:
		return nil, fmt.Errorf("unknown detector sharing mode %q", mode)
	}
}
