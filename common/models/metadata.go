package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is an arbitrary JSON metadata document
type Metadata map[string]interface{}

// Clone returns a deep copy of the metadata via JSON round-trip
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		// Metadata always originates from decoded JSON, so this is unreachable
		panic(fmt.Sprintf("metadata not JSON-serializable: %v", err))
	}
	out := make(Metadata)
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("metadata round-trip failed: %v", err))
	}
	return out
}

// Equal compares two metadata documents by canonical JSON encoding
func (m Metadata) Equal(other Metadata) bool {
	a, err := json.Marshal(m)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// String returns the string value at key, or "" if absent or not a string
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
