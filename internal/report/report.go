// Package report accumulates the facts a command emits as one JSON object
// when --json is set.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Report is a deep-merging JSON object. Adding a map under an existing map
// merges keys, adding a list under an existing list appends, and anything
// else replaces the previous value.
type Report struct {
	mu   sync.Mutex
	data map[string]any
}

// New returns an empty Report.
func New() *Report {
	return &Report{data: map[string]any{}}
}

// Add merges value under key. Values must be JSON-encodable.
func (r *Report) Add(key string, value any) error {
	norm, err := normalize(value)
	if err != nil {
		return fmt.Errorf("report %s: %w", key, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = merge(r.data[key], norm)
	return nil
}

// Has reports whether key was ever added.
func (r *Report) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[key]
	return ok
}

// Get returns the accumulated value for key in its JSON-decoded form.
func (r *Report) Get(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	return v, ok
}

// JSON renders the accumulated report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.MarshalIndent(r.data, "", "  ")
}

// Write emits the report followed by a newline.
func (r *Report) Write(w io.Writer) error {
	b, err := r.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

// normalize turns typed maps and slices into map[string]any and []any.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func merge(old, add any) any {
	switch a := add.(type) {
	case map[string]any:
		o, ok := old.(map[string]any)
		if !ok {
			return a
		}
		for k, v := range a {
			o[k] = merge(o[k], v)
		}
		return o
	case []any:
		if o, ok := old.([]any); ok {
			return append(o, a...)
		}
		return a
	}
	return add
}
