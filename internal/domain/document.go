package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/spf13/cast"
)

// Document is a schemaless store record. Values are whatever the adapter decoded:
// JSON adapters produce float64 numbers, the in-memory store keeps Go types.
type Document map[string]interface{}

// Snapshot is a document together with its id, as returned by queries.
type Snapshot struct {
	ID   string
	Data Document
}

type ReadMode int

const (
	// ReadDefault allows the adapter to answer from a local cache.
	ReadDefault ReadMode = iota
	// ReadStrong requires a server-authoritative read.
	ReadStrong
)

func (m ReadMode) String() string {
	switch m {
	case ReadDefault:
		return "default"
	case ReadStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// Predicate is a set of field equality clauses, all of which must hold.
type Predicate map[string]interface{}

// Fields returns the clause fields in a stable order.
func (p Predicate) Fields() []string {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (p Predicate) Matches(doc Document) bool {
	for field, want := range p {
		got, ok := doc[field]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return af == bf
		}
	}
	as, err := cast.ToStringE(a)
	if err != nil {
		return false
	}
	bs, err := cast.ToStringE(b)
	if err != nil {
		return false
	}
	return as == bs
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		f, err := cast.ToFloat64E(n)
		return f, err == nil
	default:
		return 0, false
	}
}

func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge copies fields into d, overwriting existing keys.
func (d Document) Merge(fields Document) {
	for k, v := range fields {
		d[k] = v
	}
}

func (d Document) String(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

func (d Document) Int(field string) int {
	v, ok := d[field]
	if !ok || v == nil {
		return 0
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0
	}
	return n
}

func (d Document) Bool(field string) bool {
	v, ok := d[field]
	if !ok || v == nil {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false
	}
	return b
}

// FloatOr returns the numeric field or def when it is absent or not a number.
func (d Document) FloatOr(field string, def float64) float64 {
	v, ok := d[field]
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// Time decodes a timestamp field. Numbers are Unix milliseconds; strings may be
// either milliseconds or any layout cast understands (RFC3339 included).
func (d Document) Time(field string) (time.Time, bool) {
	v, ok := d[field]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if ms, err := cast.ToInt64E(t); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		parsed, err := cast.ToTimeE(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	ms, err := cast.ToInt64E(v)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Timestamp encodes t the way this service writes timestamps.
func Timestamp(t time.Time) int64 {
	return t.UnixMilli()
}
