package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Fields is the decoded body of a store document. Every accessor is
// defensive: a missing or malformed field yields the zero value.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Has reports whether key is present and non-null.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

func (f Fields) Bool(key string) bool {
	v, ok := f[key].(bool)
	return ok && v
}

func (f Fields) String(key string) string {
	v, _ := f[key].(string)
	return v
}

// OptString returns nil when the field is absent, empty or not a string.
func (f Fields) OptString(key string) *string {
	v, ok := f[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func (f Fields) Float(key string) float64 {
	v, _ := toFloat(f[key])
	return v
}

func (f Fields) Int(key string) int {
	v, ok := toFloat(f[key])
	if !ok {
		return 0
	}
	return int(math.Round(v))
}

// Time decodes native times, RFC3339 strings, epoch milliseconds and
// {"seconds","nanoseconds"} objects.
func (f Fields) Time(key string) (time.Time, bool) {
	return toTime(f[key])
}

// OptTime is Time returning a pointer; nil means absent.
func (f Fields) OptTime(key string) *time.Time {
	t, ok := f.Time(key)
	if !ok {
		return nil
	}
	return &t
}

// List returns the nested objects of an array field, skipping non-objects.
func (f Fields) List(key string) []Fields {
	switch raw := f[key].(type) {
	case []Fields:
		return raw
	case []map[string]any:
		out := make([]Fields, 0, len(raw))
		for _, m := range raw {
			out = append(out, Fields(m))
		}
		return out
	case []any:
		out := make([]Fields, 0, len(raw))
		for _, item := range raw {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Fields(m))
			case Fields:
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case map[string]any:
		return fromSecondsObject(Fields(t))
	case Fields:
		return fromSecondsObject(t)
	}
	if ms, ok := toFloat(v); ok {
		return time.UnixMilli(int64(ms)), true
	}
	return time.Time{}, false
}

// fromSecondsObject handles Firestore-style timestamps.
func fromSecondsObject(f Fields) (time.Time, bool) {
	secs, ok := toFloat(f["seconds"])
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := toFloat(f["nanoseconds"])
	return time.Unix(int64(secs), int64(nanos)), true
}
