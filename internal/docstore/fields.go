package docstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

func (f Fields) clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// resolve returns a copy of f with ServerTimestamp values replaced by now.
func (f Fields) resolve(now time.Time) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

// Int reads a numeric field. Missing or non-numeric values read as zero.
func (f Fields) Int(key string) int {
	switch v := f[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// String reads a string field.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Bool reads a boolean field; ok is false when the field is absent or not a bool.
func (f Fields) Bool(key string) (value bool, ok bool) {
	value, ok = f[key].(bool)
	return value, ok
}

// Time reads a timestamp field stored either natively or as an RFC 3339 string.
func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

// encodeFields serializes fields for backends that store JSON.
func encodeFields(f Fields) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document fields: %w", err)
	}
	return b, nil
}

func decodeFields(b []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document fields: %w", err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}
