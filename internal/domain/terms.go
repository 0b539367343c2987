package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Terms is a free-form JSON object attached to a contract (collateral or
// additional terms). Its schema is not fixed; it is stored as an opaque blob.
type Terms map[string]any

// DecodeTerms decodes a JSON object. Empty input and JSON null yield nil.
func DecodeTerms(data []byte) (Terms, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var t Terms
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode terms: %w", err)
	}
	return t, nil
}

// Encode returns the JSON encoding of the terms. Nil terms encode as "{}".
func (t Terms) Encode() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(t))
}

// Value implements driver.Valuer.
func (t Terms) Value() (driver.Value, error) {
	data, err := t.Encode()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (t *Terms) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan terms: unsupported type %T", src)
	}
	decoded, err := DecodeTerms(data)
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}

// Clone returns a deep copy made through a JSON round trip.
func (t Terms) Clone() Terms {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(map[string]any(t))
	if err != nil {
		return nil
	}
	out, _ := DecodeTerms(data)
	return out
}

// String returns the value under key formatted as a string.
func (t Terms) String(key string) (string, bool) {
	v, ok := t[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	default:
		return fmt.Sprint(s), true
	}
}

// Float returns the value under key as a float64 when it is numeric or a
// numeric string.
func (t Terms) Float(key string) (float64, bool) {
	v, ok := t[key]
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// List returns the object entries of the list stored under key. Entries that
// are not JSON objects are dropped.
func (t Terms) List(key string) []map[string]any {
	raw, ok := t[key].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// ToFloat converts JSON-decoded numbers and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
