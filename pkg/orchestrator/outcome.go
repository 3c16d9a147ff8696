package orchestrator

import "github.com/menta2k/frame-analyzer/pkg/types"

// Outcome is the result of one unit of work: detections on success, a reason on failure
type Outcome struct {
	Detections []types.Detection
	Err        error
}

// Success wraps the detections of a frame that was analyzed
func Success(detections []types.Detection) Outcome {
	if detections == nil {
		detections = []types.Detection{}
	}
	return Outcome{Detections: detections}
}

// Failure wraps the reason a frame could not be analyzed
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// OK reports whether the frame was analyzed
func (o Outcome) OK() bool {
	return o.Err == nil
}

// FrameResult applies the per-frame failure policy: a failed frame is reported
// with no detections and never escalates to the batch.
func (o Outcome) FrameResult(file string) types.FrameResult {
	if !o.OK() {
		return types.FrameResult{File: file, Detections: []types.Detection{}, Status: types.StatusFailed}
	}
	return types.FrameResult{File: file, Detections: o.Detections, Status: types.StatusOK}
}
