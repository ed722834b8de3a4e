package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataCloneIsDeep(t *testing.T) {
	original := Metadata{
		"name":   "dataset",
		"nested": map[string]interface{}{"key": "value"},
	}
	clone := original.Clone()
	clone["name"] = "changed"
	clone["nested"].(map[string]interface{})["key"] = "changed"

	assert.Equal(t, "dataset", original["name"])
	assert.Equal(t, "value", original["nested"].(map[string]interface{})["key"])
	assert.Nil(t, Metadata(nil).Clone())
}

func TestMetadataEqual(t *testing.T) {
	a := Metadata{"name": "x", "count": 1}
	b := Metadata{"count": 1, "name": "x"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Metadata{"name": "y", "count": 1}))
}

func TestMetadataString(t *testing.T) {
	m := Metadata{"name": "x", "count": 1}
	assert.Equal(t, "x", m.String("name"))
	assert.Equal(t, "", m.String("count"))
	assert.Equal(t, "", m.String("missing"))
}
