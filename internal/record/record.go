// Package record holds the insertion-ordered key/value map produced by every parser.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known keys
const (
	KeyMeta      = "Meta"
	KeyValue     = "value"
	KeyFormat    = "FORMAT"
	KeyTransType = "TRANS_TYPE"
	KeyError     = "ERROR"
	KeyRawMeta   = "META"
)

// Record is an ordered map. Values are string, []string or *Record.
// A nested *Record is owned by exactly one parent.
type Record struct {
	keys   []string
	values map[string]any
}

// New creates an empty record
func New() *Record {
	return &Record{values: make(map[string]any)}
}

// Failed builds the degraded record returned when an extractor cannot parse its input
func Failed(format, meta, code string) *Record {
	r := New()
	r.Set(KeyFormat, format)
	r.Set(KeyRawMeta, meta)
	r.Set(KeyError, code)
	return r
}

// Set stores v under k. An existing key keeps its position.
func (r *Record) Set(k string, v any) {
	switch v.(type) {
	case string, []string, *Record:
	default:
		panic(fmt.Sprintf("record: unsupported value type %T for key %q", v, k))
	}
	if _, ok := r.values[k]; !ok {
		r.keys = append(r.keys, k)
	}
	r.values[k] = v
}

// Get returns the raw value for k
func (r *Record) Get(k string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[k]
	return v, ok
}

// String returns the value for k when it is a plain string
func (r *Record) String(k string) string {
	v, _ := r.Get(k)
	s, _ := v.(string)
	return s
}

// Nested returns the value for k when it is a nested record
func (r *Record) Nested(k string) *Record {
	v, _ := r.Get(k)
	n, _ := v.(*Record)
	return n
}

// Keys returns keys in insertion order
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Failed reports whether the record carries an extraction error marker
func (r *Record) Failed() bool {
	_, ok := r.Get(KeyError)
	return ok
}

// Lower returns a shallow view keyed by lower-cased key. On collisions the first key wins.
func (r *Record) Lower() map[string]any {
	out := make(map[string]any, r.Len())
	for _, k := range r.Keys() {
		lk := strings.ToLower(k)
		if _, ok := out[lk]; ok {
			continue
		}
		out[lk] = r.values[k]
	}
	return out
}

// MarshalJSON writes the record as a JSON object preserving key order
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshaling %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
