// internal/model/codec.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// systemTimeJSON is the legacy timestamp shape written by older clients.
type systemTimeJSON struct {
	Secs  *int64 `json:"secs_since_epoch"`
	Nanos int64  `json:"nanos_since_epoch"`
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// pickField returns the first non-null value among keys. Older records used
// snake_case keys, so callers list the camelCase key first and the legacy key after it.
func pickField(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func decodeFields(kind string, data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return fields, nil
}

// decodeTag splits an externally tagged union into its tag and body.
// Unit variants are encoded as a bare string and come back with a nil body.
func decodeTag(kind string, data []byte) (string, json.RawMessage, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		return tag, nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("decode %s: expected exactly one variant tag, got %d", kind, len(obj))
	}
	for k, v := range obj {
		return k, v, nil
	}
	return "", nil, nil // unreachable
}

func encodeTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeTimestamp accepts RFC 3339 strings and the legacy seconds/nanos object.
func decodeTimestamp(data json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("decode timestamp: %w", err)
		}
		return t, nil
	}

	var st systemTimeJSON
	if err := json.Unmarshal(data, &st); err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp: %w", err)
	}
	if st.Secs == nil {
		return time.Time{}, fmt.Errorf("decode timestamp: missing secs_since_epoch")
	}
	return time.Unix(*st.Secs, st.Nanos).UTC(), nil
}

// requireField is pickField for fields that have no default. Absent and null are both missing.
func requireField(kind string, fields map[string]json.RawMessage, keys ...string) (json.RawMessage, error) {
	raw, ok := pickField(fields, keys...)
	if !ok {
		return nil, fmt.Errorf("decode %s: missing field %q", kind, keys[0])
	}
	return raw, nil
}

func decodeRequiredString(kind string, fields map[string]json.RawMessage, keys ...string) (string, error) {
	raw, err := requireField(kind, fields, keys...)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode %s: %w", keys[0], err)
	}
	return s, nil
}

func decodeString(fields map[string]json.RawMessage, keys ...string) (string, error) {
	raw, ok := pickField(fields, keys...)
	if !ok {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode %s: %w", keys[0], err)
	}
	return s, nil
}

func decodeOptionalString(fields map[string]json.RawMessage, keys ...string) (*string, error) {
	raw, ok := pickField(fields, keys...)
	if !ok {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keys[0], err)
	}
	return &s, nil
}
