package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidatePath(t *testing.T) {
	valid := []string{
		"a.nwb",
		"sub-01/ses-1/a.nwb",
		"dir with spaces/file (1).json",
		strings.Repeat("a", MaxPathLength),
	}
	for _, path := range valid {
		assert.NoError(t, ValidatePath(path), "path %q", path)
	}

	invalid := []string{
		"",
		"/leading",
		"trailing/",
		"double//slash",
		"../escape",
		"dir/./file",
		"dir/..",
		"ctrl\x00char",
		strings.Repeat("a", MaxPathLength+1),
	}
	for _, path := range invalid {
		assert.ErrorIs(t, ValidatePath(path), ErrInvalidPath, "path %q", path)
	}
}

func TestSameContent(t *testing.T) {
	ref := NewBlobRef(uuid.New())
	asset := &Asset{
		Path:     "a.nwb",
		Metadata: Metadata{"encodingFormat": "application/x-nwb"},
		Content:  ref,
	}

	assert.True(t, asset.SameContent("a.nwb", Metadata{"encodingFormat": "application/x-nwb"}, ref))
	assert.False(t, asset.SameContent("b.nwb", Metadata{"encodingFormat": "application/x-nwb"}, ref))
	assert.False(t, asset.SameContent("a.nwb", Metadata{"encodingFormat": "application/json"}, ref))
	assert.False(t, asset.SameContent("a.nwb", Metadata{"encodingFormat": "application/x-nwb"}, NewBlobRef(uuid.New())))
}
