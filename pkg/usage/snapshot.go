package usage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Window is one rate limit window.
type Window struct {
	UsedPercent       float64 `json:"used_percent" yaml:"used_percent"`
	ResetAfterSeconds float64 `json:"reset_after_seconds" yaml:"reset_after_seconds"`
}

// Snapshot is the part of the usage response this tool displays.
type Snapshot struct {
	// Primary is the short (5-hour) window.
	Primary Window `json:"primary_window" yaml:"primary_window"`
	// Secondary is the weekly window.
	Secondary Window `json:"secondary_window" yaml:"secondary_window"`
}

// ParseSnapshot extracts rate_limit.primary_window and
// rate_limit.secondary_window from a usage response. Numeric fields may be
// JSON numbers or numeric strings.
func ParseSnapshot(body []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &UnexpectedResponseError{Reason: "response is not valid JSON"}
	}

	primary, err := window(raw, "primary_window")
	if err != nil {
		return nil, err
	}
	secondary, err := window(raw, "secondary_window")
	if err != nil {
		return nil, err
	}
	return &Snapshot{Primary: primary, Secondary: secondary}, nil
}

func window(raw any, key string) (Window, error) {
	var w map[string]any
	if root, ok := raw.(map[string]any); ok {
		if rl, ok := root["rate_limit"].(map[string]any); ok {
			w, _ = rl[key].(map[string]any)
		}
	}

	used, okUsed := number(w["used_percent"])
	reset, okReset := number(w["reset_after_seconds"])
	if !okUsed || !okReset {
		return Window{}, &UnexpectedResponseError{
			Reason: fmt.Sprintf("missing rate_limit.%s.used_percent/reset_after_seconds", key),
		}
	}
	return Window{UsedPercent: used, ResetAfterSeconds: reset}, nil
}

// number accepts a finite JSON number or a non-blank numeric string.
func number(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
