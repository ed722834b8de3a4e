package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRefConstructors(t *testing.T) {
	id := uuid.New()

	blob := NewBlobRef(id)
	assert.Equal(t, ContentBlob, blob.Kind())
	assert.Equal(t, id, blob.ID())
	assert.True(t, blob.IsBlob())
	assert.False(t, blob.IsZarr())

	embargoed := NewEmbargoedBlobRef(id)
	assert.Equal(t, ContentEmbargoedBlob, embargoed.Kind())
	assert.True(t, embargoed.IsBlob())

	zarr := NewZarrRef(id)
	assert.True(t, zarr.IsZarr())
	assert.False(t, zarr.IsBlob())

	assert.True(t, ContentRef{}.IsZero())
	assert.False(t, blob.IsZero())
}

func TestNewContentRefRejectsBadColumns(t *testing.T) {
	_, err := NewContentRef("tarball", uuid.New())
	assert.ErrorIs(t, err, ErrContentRefConflict)

	_, err = NewContentRef(ContentBlob, uuid.Nil)
	assert.ErrorIs(t, err, ErrContentRefConflict)

	ref, err := NewContentRef(ContentZarr, uuid.New())
	require.NoError(t, err)
	assert.True(t, ref.IsZarr())
}
