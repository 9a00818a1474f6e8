// ABOUTME: Fallible accessors for untyped event payloads
// ABOUTME: Extraction failures come back as DataIntegrityError for a single record

package events

import (
	"github.com/tidwall/gjson"
)

// Record is one element of an array payload.
type Record struct {
	URI   string
	Index int
	value gjson.Result
}

// Records splits an array payload into records. Any other payload shape is a
// DataIntegrityError covering the whole payload.
func (e Event) Records() ([]Record, error) {
	if !gjson.ValidBytes(e.Data) {
		return nil, &DataIntegrityError{URI: e.URI, Index: -1, Reason: "is not valid JSON"}
	}
	res := gjson.ParseBytes(e.Data)
	if !res.IsArray() {
		return nil, &DataIntegrityError{URI: e.URI, Index: -1, Reason: "is not an array"}
	}
	items := res.Array()
	out := make([]Record, len(items))
	for i, item := range items {
		out[i] = Record{URI: e.URI, Index: i, value: item}
	}
	return out, nil
}

// String returns the non-empty string stored under key.
func (r Record) String(key string) (string, error) {
	if !r.value.IsObject() {
		return "", &DataIntegrityError{URI: r.URI, Index: r.Index, Reason: "is not an object"}
	}
	field := r.value.Get(gjson.Escape(key))
	switch {
	case !field.Exists():
		return "", &DataIntegrityError{URI: r.URI, Index: r.Index, Field: key, Reason: "is missing"}
	case field.Type != gjson.String:
		return "", &DataIntegrityError{URI: r.URI, Index: r.Index, Field: key, Reason: "is not a string"}
	case field.Str == "":
		return "", &DataIntegrityError{URI: r.URI, Index: r.Index, Field: key, Reason: "is empty"}
	}
	return field.Str, nil
}

// Raw returns the record's JSON text.
func (r Record) Raw() string {
	return r.value.Raw
}
