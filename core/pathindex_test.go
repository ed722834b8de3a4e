package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository/memory"
)

func childByName(children []models.PathChild, name string) *models.PathChild {
	for i := range children {
		if children[i].Name == name {
			return &children[i]
		}
	}
	return nil
}

func TestPathIndexAggregatesPerDirectory(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	// Three assets across two subject folders
	blobA := env.newReadyBlob(t, []byte("aaaa"))
	_, err := env.chain.Attach(ctx, draft, "sub-01/ses-1/a.nwb", validMetadata(), blobA.Ref())
	require.NoError(t, err)

	blobB := env.newReadyBlob(t, []byte("bb"))
	_, err = env.chain.Attach(ctx, draft, "sub-01/ses-2/b.nwb", validMetadata(), blobB.Ref())
	require.NoError(t, err)

	blobC := env.newReadyBlob(t, []byte("c"))
	_, err = env.chain.Attach(ctx, draft, "sub-02/c.nwb", validMetadata(), blobC.Ref())
	require.NoError(t, err)

	root, err := env.paths.ChildrenOf(ctx, draft.ID, "", 100, 0)
	require.NoError(t, err)
	require.Len(t, root, 2)

	sub01 := childByName(root, "sub-01/")
	require.NotNil(t, sub01)
	assert.False(t, sub01.IsLeaf)
	assert.Equal(t, int64(2), sub01.FileCount)
	assert.Equal(t, int64(6), sub01.TotalSize)

	sub02 := childByName(root, "sub-02/")
	require.NotNil(t, sub02)
	assert.Equal(t, int64(1), sub02.FileCount)
	assert.Equal(t, int64(1), sub02.TotalSize)

	// Root totals equal the sum of all live asset sizes
	var rootFiles, rootBytes int64
	for _, child := range root {
		rootFiles += child.FileCount
		rootBytes += child.TotalSize
	}
	assert.Equal(t, int64(3), rootFiles)
	assert.Equal(t, int64(7), rootBytes)

	// Leaf listing inside a session folder
	ses1, err := env.paths.ChildrenOf(ctx, draft.ID, "sub-01/ses-1", 100, 0)
	require.NoError(t, err)
	require.Len(t, ses1, 1)
	assert.True(t, ses1[0].IsLeaf)
	assert.Equal(t, "sub-01/ses-1/a.nwb", ses1[0].Name)
	assert.Equal(t, int64(4), ses1[0].TotalSize)
}

func TestPathIndexDetachPrunesEmptyDirectories(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.chain.Attach(ctx, draft, "sub-01/ses-1/a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	other := env.newReadyBlob(t, []byte("xx"))
	_, err = env.chain.Attach(ctx, draft, "sub-02/b.nwb", validMetadata(), other.Ref())
	require.NoError(t, err)

	require.NoError(t, env.chain.Detach(ctx, draft, asset))

	// The whole sub-01 branch is gone, sub-02 is untouched
	_, err = env.paths.ChildrenOf(ctx, draft.ID, "sub-01", 100, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	root, err := env.paths.ChildrenOf(ctx, draft.ID, "", 100, 0)
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, "sub-02/", root[0].Name)
}

func TestPathIndexFollowsReplace(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("12345678"))
	asset, err := env.chain.Attach(ctx, draft, "old/a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	newBlob := env.newReadyBlob(t, []byte("123"))
	_, err = env.chain.Replace(ctx, draft, asset, "new/a.nwb", validMetadata(), newBlob.Ref())
	require.NoError(t, err)

	_, err = env.paths.ChildrenOf(ctx, draft.ID, "old", 100, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	moved, err := env.paths.ChildrenOf(ctx, draft.ID, "new", 100, 0)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, int64(3), moved[0].TotalSize)
}

func TestPathIndexUnknownPrefix(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)

	_, err := env.paths.ChildrenOf(context.Background(), draft.ID, "nope", 100, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func BenchmarkPathIndexAttachLeaf(b *testing.B) {
	store := memory.NewStore()
	log := logger.New("error", "json")
	paths := NewPathIndex(store, log)
	ctx := context.Background()

	dandiset := &models.Dandiset{EmbargoStatus: models.EmbargoOpen}
	if err := store.Dandisets().Create(ctx, dandiset); err != nil {
		b.Fatal(err)
	}
	draft := &models.Version{
		DandisetID: dandiset.ID,
		Version:    models.DraftVersion,
		Metadata:   models.Metadata{},
		Status:     models.StatusPending,
	}
	if err := store.Versions().Create(ctx, draft); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("sub-%03d/ses-%02d/file-%d.nwb", i%100, i%10, i)
		if err := paths.AttachLeaf(ctx, store, draft.ID, path, int64(i+1), 1024); err != nil {
			b.Fatal(err)
		}
	}
}
