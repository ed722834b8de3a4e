package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/queue"
)

func TestCreateAssetValidatesEagerlyAndSchedulesWork(t *testing.T) {
	env := newTestEnv(t)
	dandiset, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	// Eager checks run inline: the digest was ready, so the asset is VALID
	// before any worker touches it
	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValid, current.Status)

	// The asynchronous work is still scheduled for the worker fleet
	assert.Equal(t, 1, env.queue.Depth(queue.TopicAssetValidate))
	assert.Equal(t, 1, env.queue.Depth(queue.TopicVersionValidate))

	version, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, version.Status)
}

func TestUpdateAssetNoopSchedulesNothing(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)
	scheduled := env.queue.Depth(queue.TopicAssetValidate)

	same, err := env.orchestrator.UpdateAsset(ctx, dandiset.ID, models.DraftVersion,
		asset.AssetID, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)
	assert.Equal(t, asset.ID, same.ID)
	assert.Equal(t, scheduled, env.queue.Depth(queue.TopicAssetValidate))
}

func TestDeleteAssetSchedulesVersionRevalidation(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)
	versionWork := env.queue.Depth(queue.TopicVersionValidate)

	require.NoError(t, env.orchestrator.DeleteAsset(ctx, dandiset.ID, models.DraftVersion, asset.AssetID))
	assert.Equal(t, versionWork+1, env.queue.Depth(queue.TopicVersionValidate))

	_, err = env.orchestrator.GetAsset(ctx, dandiset.ID, models.DraftVersion, asset.AssetID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListAssetsReturnsLiveSetOnly(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	blobA := env.newReadyBlob(t, []byte("aa"))
	_, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"a.nwb", validMetadata(), blobA.Ref())
	require.NoError(t, err)

	blobB := env.newReadyBlob(t, []byte("bb"))
	assetB, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"b.nwb", validMetadata(), blobB.Ref())
	require.NoError(t, err)

	// Replace b.nwb; the listing must show one live record per asset
	blobC := env.newReadyBlob(t, []byte("cc"))
	_, err = env.orchestrator.UpdateAsset(ctx, dandiset.ID, models.DraftVersion,
		assetB.AssetID, "b.nwb", validMetadata(), blobC.Ref())
	require.NoError(t, err)

	assets, err := env.orchestrator.ListAssets(ctx, dandiset.ID, models.DraftVersion)
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestCreateAssetDefaultsSchemaVersion(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"a.nwb", models.Metadata{"encodingFormat": "application/x-nwb"}, blob.Ref())
	require.NoError(t, err)

	// The omitted schemaVersion was filled in, so the version pin passes
	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, testSchemaVersion, current.Metadata.String("schemaVersion"))
	assert.Equal(t, models.StatusValid, current.Status)
}

func TestCreateAssetKeepsExplicitSchemaVersion(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.orchestrator.CreateAsset(ctx, dandiset.ID, models.DraftVersion,
		"a.nwb", models.Metadata{
			"schemaVersion":  "0.5.0",
			"encodingFormat": "application/x-nwb",
		}, blob.Ref())
	require.NoError(t, err)

	// A client-supplied version is validated as-is, not silently replaced
	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.5.0", current.Metadata.String("schemaVersion"))
	assert.Equal(t, models.StatusInvalid, current.Status)
}
