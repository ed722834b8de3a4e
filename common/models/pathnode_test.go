package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryPrefixes(t *testing.T) {
	assert.Nil(t, DirectoryPrefixes("a.nwb"))
	assert.Equal(t, []string{"sub"}, DirectoryPrefixes("sub/a.nwb"))
	assert.Equal(t, []string{"sub", "sub/dir"}, DirectoryPrefixes("sub/dir/a.nwb"))
}

func TestParentDirectory(t *testing.T) {
	assert.Equal(t, "", ParentDirectory("a.nwb"))
	assert.Equal(t, "sub", ParentDirectory("sub/a.nwb"))
	assert.Equal(t, "sub/dir", ParentDirectory("sub/dir/a.nwb"))
}
