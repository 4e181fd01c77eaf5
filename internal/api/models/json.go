package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a free form object stored as jsonb.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m, "JSONMap")
}

// JSONAny is any JSON value stored as jsonb, nil as SQL NULL.
type JSONAny struct {
	V any
}

func (j JSONAny) Value() (driver.Value, error) {
	if j.V == nil {
		return nil, nil
	}
	return json.Marshal(j.V)
}

func (j *JSONAny) Scan(value interface{}) error {
	return scanJSON(value, &j.V, "JSONAny")
}

func (j JSONAny) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

func (j *JSONAny) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.V)
}

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l, "StringList")
}

func scanJSON(value interface{}, dest any, name string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("failed to scan " + name + ": expected []byte")
	}
	return json.Unmarshal(data, dest)
}
