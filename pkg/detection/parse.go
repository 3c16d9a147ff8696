package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedReply marks a model reply that cannot be read as a list of objects
var ErrMalformedReply = errors.New("malformed model reply")

// rawObject accepts the field names different vision models use for the same thing
type rawObject struct {
	Label  string    `json:"label"`
	Class  string    `json:"class"`
	Name   string    `json:"name"`
	Box    []float64 `json:"box"`
	BBox   []float64 `json:"bbox"`
	BBox2D []float64 `json:"bbox_2d"`
}

func (o rawObject) label() string {
	switch {
	case o.Label != "":
		return o.Label
	case o.Class != "":
		return o.Class
	default:
		return o.Name
	}
}

func (o rawObject) box() []float64 {
	switch {
	case o.Box != nil:
		return o.Box
	case o.BBox != nil:
		return o.BBox
	default:
		return o.BBox2D
	}
}

type rawReply struct {
	Objects []rawObject `json:"objects"`
}

// parseObjects decodes {"objects":[...]} or a bare [...] from a model reply
func parseObjects(raw string) ([]rawObject, error) {
	raw = sanitizeModelJSON(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON found", ErrMalformedReply)
	}

	var objects []rawObject
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &objects); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
	} else {
		var reply rawReply
		if err := json.Unmarshal([]byte(raw), &reply); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		objects = reply.Objects
	}

	for i, o := range objects {
		if n := len(o.box()); n != 4 {
			return nil, fmt.Errorf("%w: object %d has %d box coordinates", ErrMalformedReply, i, n)
		}
	}
	return objects, nil
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from a JSON reply
// and keeps only the outermost object or array
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}
