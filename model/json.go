package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

func scanJSON(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Data is an open key→value map, as held by master-data records and
// new-identity payloads.
type Data map[string]any

func (d *Data) Scan(src any) error {
	*d = nil
	return scanJSON(src, d)
}

func (d Data) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return jsonValue(map[string]any(d))
}

// Text renders the value stored under key as a cell string. Structured values
// become compact JSON.
func (d Data) Text(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// Stringify renders a decoded JSON value the way it is shown in listings and exports.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// StringList is a JSON-encoded list of strings.
type StringList []string

func (l *StringList) Scan(src any) error {
	*l = nil
	return scanJSON(src, l)
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return jsonValue([]string(l))
}

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// RawJSON holds an encoded JSON value as stored, without decoding it.
type RawJSON []byte

func (r *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case string:
		*r = RawJSON(v)
	case []byte:
		*r = append(RawJSON(nil), v...)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", src)
	}
	return nil
}

func (r RawJSON) Value() (driver.Value, error) {
	if r == nil {
		return "null", nil
	}
	return string(r), nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// Decode returns the stored value decoded into plain Go values.
func (r RawJSON) Decode() (any, error) {
	if len(r) == 0 {
		return nil, nil
	}
	var v any
	err := json.Unmarshal(r, &v)
	return v, err
}
