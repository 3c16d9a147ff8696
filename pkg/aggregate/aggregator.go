// Package aggregate merges per-frame outcomes into one batch result.
package aggregate

import (
	"sync"

	"github.com/menta2k/frame-analyzer/pkg/types"
)

// Aggregator collects results from concurrent workers into submission-ordered slots.
// The first fatal signal wins and replaces the whole batch.
type Aggregator struct {
	mu     sync.Mutex
	slots  []types.FrameResult
	filled []bool
	fatal  *types.FatalError
}

// New creates an aggregator for n submitted frames
func New(n int) *Aggregator {
	if n < 0 {
		n = 0
	}
	return &Aggregator{
		slots:  make([]types.FrameResult, n),
		filled: make([]bool, n),
	}
}

// Add records the result for the frame submitted at index
func (a *Aggregator) Add(index int, r types.FrameResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= len(a.slots) {
		a.setFatal(types.NewFatal(types.FatalOrchestrator, nil,
			"result index %d out of range for %d frames", index, len(a.slots)))
		return
	}
	if a.filled[index] {
		a.setFatal(types.NewFatal(types.FatalOrchestrator, nil,
			"duplicate result for frame %d (%s)", index, r.File))
		return
	}
	if r.Detections == nil {
		r.Detections = []types.Detection{}
	}
	a.slots[index] = r
	a.filled[index] = true
}

// Fatal records a fatal signal; later ones are ignored
func (a *Aggregator) Fatal(err *types.FatalError) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setFatal(err)
}

func (a *Aggregator) setFatal(err *types.FatalError) {
	if a.fatal == nil {
		a.fatal = err
	}
}

// Len returns how many results have been recorded
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, ok := range a.filled {
		if ok {
			n++
		}
	}
	return n
}

// Result resolves the batch. It is Fatal when a fatal signal was recorded or
// when a submitted frame never reported, Ok with every frame in submission order otherwise.
func (a *Aggregator) Result() types.BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fatal != nil {
		return types.Fatal(a.fatal)
	}
	for i, ok := range a.filled {
		if !ok {
			return types.Fatal(types.NewFatal(types.FatalOrchestrator, nil,
				"no result for frame %d of %d", i, len(a.slots)))
		}
	}

	frames := make([]types.FrameResult, len(a.slots))
	copy(frames, a.slots)
	return types.Ok(frames)
}
