package types

import "fmt"

// Frame is one image file considered for analysis
type Frame struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// Box is a bounding box in source-image pixel space: x_min, y_min, x_max, y_max
type Box [4]float64

// Detection is one recognized object
type Detection struct {
	Box   Box    `json:"box"`
	Class string `json:"class"`
}

// FrameStatus tells a frame without objects apart from a frame whose analysis failed.
// It is only written to the wire when the status extension is enabled.
type FrameStatus string

const (
	StatusOK     FrameStatus = "ok"
	StatusFailed FrameStatus = "failed"
)

// FrameResult holds the detections for one dispatched frame
type FrameResult struct {
	File       string      `json:"file"`
	Detections []Detection `json:"boxes"`
	Status     FrameStatus `json:"-"`
}

// FatalKind identifies the stage that aborted a batch
type FatalKind int

const (
	FatalModelLoad FatalKind = iota + 1
	FatalDirectoryNotFound
	FatalPathVanished
	FatalOrchestrator
	FatalUsage
)

func (k FatalKind) String() string {
	switch k {
	case FatalModelLoad:
		return "model_load"
	case FatalDirectoryNotFound:
		return "directory_not_found"
	case FatalPathVanished:
		return "path_vanished"
	case FatalOrchestrator:
		return "orchestrator"
	case FatalUsage:
		return "usage"
	default:
		return fmt.Sprintf("fatal(%d)", int(k))
	}
}

// FatalError replaces the whole batch result
type FatalError struct {
	Kind    FatalKind
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	return e.Message
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal builds a FatalError whose message is format applied to args
func NewFatal(kind FatalKind, cause error, format string, args ...any) *FatalError {
	return &FatalError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// BatchResult is either Ok (Frames) or Fatal (Err). A fatal result never carries frames.
type BatchResult struct {
	Frames []FrameResult
	Err    *FatalError
}

// Ok wraps per-frame results into a successful batch
func Ok(frames []FrameResult) BatchResult {
	if frames == nil {
		frames = []FrameResult{}
	}
	return BatchResult{Frames: frames}
}

// Fatal wraps a fatal error into a batch result
func Fatal(err *FatalError) BatchResult {
	return BatchResult{Err: err}
}

// IsFatal reports whether the batch was aborted
func (r BatchResult) IsFatal() bool {
	return r.Err != nil
}
