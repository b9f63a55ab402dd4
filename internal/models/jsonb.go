package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONB maps a PostgreSQL jsonb column onto a raw JSON payload. Payment
// process rows carry their gateway session data through it, so the shape
// stays opaque to the schema.
type JSONB json.RawMessage

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner. Unrecognized source types leave the payload
// empty rather than failing the row scan.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = JSONB(v)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*j = nil
		return nil
	}
	*j = JSONB(data)
	return nil
}

// NewJSONB marshals v into a jsonb payload
func NewJSONB(v interface{}) (JSONB, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONB(data), nil
}

// Decode unmarshals the payload into dst. An empty payload leaves dst
// untouched.
func (j JSONB) Decode(dst interface{}) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, dst)
}
