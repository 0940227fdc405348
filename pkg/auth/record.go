// Package auth defines the persisted credential record, the header
// allow-list applied on import, and the read-only credential sources used
// when nothing has been imported.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/leiske/codex-usage/pkg/curl"
)

// ErrMissingAuthorization is returned when a capture carries no usable
// authorization header after filtering.
var ErrMissingAuthorization = errors.New("captured request has no authorization header")

// Record is a stored credential. Treat it as immutable; use Clone before
// handing a copy to code that might modify it.
type Record struct {
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	Cookie     string            `json:"cookie,omitempty"`
	ImportedAt int64             `json:"imported_at"`
}

// NewRecord builds a record from a parsed capture. Headers are passed
// through the allow-list filter.
func NewRecord(capture *curl.Capture, now time.Time) (*Record, error) {
	if capture == nil {
		return nil, &ShapeError{Source: "capture", Reason: "capture is nil"}
	}

	headers := FilterAllowedHeaders(capture.Headers)
	if headers[HeaderAuthorization] == "" {
		return nil, ErrMissingAuthorization
	}

	rec := &Record{
		URL:        capture.URL,
		Headers:    headers,
		Cookie:     strings.TrimSpace(capture.Cookie),
		ImportedAt: now.Unix(),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks the structural rules a record must satisfy.
func (r *Record) Validate() error {
	if r == nil {
		return &ShapeError{Reason: "record is null"}
	}
	if r.URL == "" {
		return &ShapeError{Reason: "url must be a non-empty string"}
	}
	if r.Headers == nil {
		return &ShapeError{Reason: "headers must be an object"}
	}
	for k := range r.Headers {
		if k == "" {
			return &ShapeError{Reason: "header names must be non-empty"}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		out.Headers[k] = v
	}
	return &out
}

// Authorization returns the authorization header value.
func (r *Record) Authorization() string {
	return r.Headers[HeaderAuthorization]
}

// OtherHeaders returns every header except authorization.
func (r *Record) OtherHeaders() map[string]string {
	out := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		if k != HeaderAuthorization {
			out[k] = v
		}
	}
	return out
}

// HeaderNames returns the sorted header names. Values are never exposed here
// so the result is safe to print.
func (r *Record) HeaderNames() []string {
	names := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ImportedTime returns ImportedAt as a time.Time.
func (r *Record) ImportedTime() time.Time {
	return time.Unix(r.ImportedAt, 0)
}

// ShapeError reports a record that failed structural validation.
type ShapeError struct {
	// Source names where the data came from, e.g. a store label.
	Source string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Source == "" {
		return "invalid auth record: " + e.Reason
	}
	return fmt.Sprintf("invalid auth record in %s: %s", e.Source, e.Reason)
}

// DecodeRecord parses and validates a stored record. Values are checked
// against their JSON types rather than coerced: a header value of 1 or a
// cookie of null is rejected.
func DecodeRecord(data []byte, source string) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ShapeError{Source: source, Reason: "not valid JSON: " + err.Error()}
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, &ShapeError{Source: source, Reason: "unexpected data after record"}
	}

	fail := func(reason string) (*Record, error) {
		return nil, &ShapeError{Source: source, Reason: reason}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return fail("record must be an object")
	}

	url, ok := obj["url"].(string)
	if !ok || url == "" {
		return fail("url must be a non-empty string")
	}

	rawHeaders, ok := obj["headers"].(map[string]any)
	if !ok {
		return fail("headers must be an object")
	}

	num, ok := obj["imported_at"].(json.Number)
	if !ok {
		return fail("imported_at must be a number")
	}
	importedAt, err := num.Float64()
	if err != nil || math.IsNaN(importedAt) || math.IsInf(importedAt, 0) {
		return fail("imported_at must be a finite number")
	}
	if importedAt < math.MinInt64 || importedAt >= math.MaxInt64 {
		return fail("imported_at out of range")
	}

	var cookie string
	if v, present := obj["cookie"]; present {
		s, ok := v.(string)
		if !ok {
			return fail("cookie must be a string")
		}
		cookie = s
	}

	headers := make(map[string]string, len(rawHeaders))
	for k, v := range rawHeaders {
		if k == "" {
			return fail("header names must be non-empty")
		}
		s, ok := v.(string)
		if !ok {
			return fail(fmt.Sprintf("header %q must be a string", k))
		}
		headers[k] = s
	}

	return &Record{
		URL:        url,
		Headers:    headers,
		Cookie:     cookie,
		ImportedAt: int64(importedAt),
	}, nil
}

// Encode renders the record as compact JSON.
func (r *Record) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth record: %w", err)
	}
	return data, nil
}
