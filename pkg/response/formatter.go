// Package response encodes batch results into the JSON wire format.
//
// A successful batch is a JSON array with one entry per frame:
//
//	[{"file": "frame_0001.png", "boxes": [{"box": [x0, y0, x1, y1], "class": "person"}]}]
//
// A fatal batch is a JSON object with exactly one key naming the failing stage:
//
//	{"model load error": "Failed to load model: ..."}
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/menta2k/frame-analyzer/pkg/types"
)

// Keys of the fatal error object
const (
	KeyModelLoad = "model load error"
	KeyDirectory = "directory error"
	KeyPath      = "path error"
	KeyAnalyze   = "analyze frames error"
	KeyUsage     = "usage error"
)

// FatalKey returns the object key used for a fatal kind
func FatalKey(kind types.FatalKind) string {
	switch kind {
	case types.FatalModelLoad:
		return KeyModelLoad
	case types.FatalDirectoryNotFound:
		return KeyDirectory
	case types.FatalPathVanished:
		return KeyPath
	case types.FatalUsage:
		return KeyUsage
	default:
		return KeyAnalyze
	}
}

func kindForKey(key string) (types.FatalKind, bool) {
	switch key {
	case KeyModelLoad:
		return types.FatalModelLoad, true
	case KeyDirectory:
		return types.FatalDirectoryNotFound, true
	case KeyPath:
		return types.FatalPathVanished, true
	case KeyAnalyze:
		return types.FatalOrchestrator, true
	case KeyUsage:
		return types.FatalUsage, true
	}
	return 0, false
}

// Formatter encodes batch results.
// WithStatus adds a "status" field ("ok" or "failed") to every frame entry.
type Formatter struct {
	WithStatus bool
}

type frameEntry struct {
	File   string            `json:"file"`
	Boxes  []types.Detection `json:"boxes"`
	Status types.FrameStatus `json:"status,omitempty"`
}

// Format encodes r as JSON
func (f Formatter) Format(r types.BatchResult) ([]byte, error) {
	if r.IsFatal() {
		return json.Marshal(map[string]string{FatalKey(r.Err.Kind): r.Err.Message})
	}

	entries := make([]frameEntry, len(r.Frames))
	for i, fr := range r.Frames {
		boxes := fr.Detections
		if boxes == nil {
			boxes = []types.Detection{}
		}
		entries[i] = frameEntry{File: fr.File, Boxes: boxes}
		if f.WithStatus {
			entries[i].Status = fr.Status
			if entries[i].Status == "" {
				entries[i].Status = types.StatusOK
			}
		}
	}
	return json.Marshal(entries)
}

// Write encodes r to w followed by a newline
func (f Formatter) Write(w io.Writer, r types.BatchResult) error {
	data, err := f.Format(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Parse decodes either wire shape back into a batch result
func Parse(data []byte) (types.BatchResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return types.BatchResult{}, errors.New("empty response")
	}

	switch data[0] {
	case '[':
		var entries []frameEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return types.BatchResult{}, fmt.Errorf("decode frames: %w", err)
		}
		frames := make([]types.FrameResult, len(entries))
		for i, e := range entries {
			if e.Boxes == nil {
				e.Boxes = []types.Detection{}
			}
			frames[i] = types.FrameResult{File: e.File, Detections: e.Boxes, Status: e.Status}
		}
		return types.Ok(frames), nil
	case '{':
		var obj map[string]string
		if err := json.Unmarshal(data, &obj); err != nil {
			return types.BatchResult{}, fmt.Errorf("decode error object: %w", err)
		}
		if len(obj) != 1 {
			return types.BatchResult{}, fmt.Errorf("error object has %d keys, want 1", len(obj))
		}
		for key, msg := range obj {
			kind, ok := kindForKey(key)
			if !ok {
				return types.BatchResult{}, fmt.Errorf("unknown error key %q", key)
			}
			return types.Fatal(&types.FatalError{Kind: kind, Message: msg}), nil
		}
	}
	return types.BatchResult{}, fmt.Errorf("unexpected response starting with %q", data[0])
}
