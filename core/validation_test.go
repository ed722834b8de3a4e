package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
	"github.com/dandihub/archive/common/schema"
)

func TestValidateAssetDefersUntilDigestReady(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newPendingBlob(t, []byte("raw bytes"))
	asset, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	// Digest not computed yet: validation is a no-op, the asset stays PENDING
	require.NoError(t, env.engine.ValidateAsset(ctx, asset.ID))
	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, current.Status)

	// Digest lands, deferred validation runs through
	require.NoError(t, env.uploads.ComputeBlobDigest(ctx, blob.BlobID))
	current, err = env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValid, current.Status)
	assert.Empty(t, current.ValidationErrors)
}

func TestValidateAssetReportsMissingRequiredField(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	metadata := models.Metadata{"schemaVersion": testSchemaVersion} // no encodingFormat
	asset, err := env.chain.Attach(ctx, draft, "a.nwb", metadata, blob.Ref())
	require.NoError(t, err)

	require.NoError(t, env.engine.ValidateAsset(ctx, asset.ID))

	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalid, current.Status)
	require.Len(t, current.ValidationErrors, 1)
	assert.Equal(t, "encodingFormat", current.ValidationErrors[0].Field)
	assert.Equal(t, "field required", current.ValidationErrors[0].Message)
}

func TestValidateAssetReportsDisallowedSchemaVersion(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	metadata := models.Metadata{
		"schemaVersion":  "xxx",
		"encodingFormat": "application/x-nwb",
	}
	asset, err := env.chain.Attach(ctx, draft, "a.nwb", metadata, blob.Ref())
	require.NoError(t, err)

	require.NoError(t, env.engine.ValidateAsset(ctx, asset.ID))

	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalid, current.Status)
	require.Len(t, current.ValidationErrors, 1)
	assert.Contains(t, current.ValidationErrors[0].Message, "Metadata version xxx is not allowed.")
}

func TestValidateVersionRequiredFields(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	// Draft metadata has only the schema version pin
	require.NoError(t, env.engine.ValidateVersion(ctx, draft.ID))

	current, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalid, current.Status)

	fields := make([]string, 0, len(current.ValidationErrors))
	for _, verr := range current.ValidationErrors {
		assert.Equal(t, "field required", verr.Message)
		fields = append(fields, verr.Field)
	}
	// Deterministic order: sorted by field name
	assert.Equal(t, []string{"contributor", "description", "license", "name"}, fields)
}

func TestAggregateAssetsSummary(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blobA := env.newReadyBlob(t, []byte("aaaa"))
	_, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blobA.Ref())
	require.NoError(t, err)

	blobB := env.newReadyBlob(t, []byte("bb"))
	metadata := validMetadata()
	metadata["encodingFormat"] = "application/json"
	_, err = env.chain.Attach(ctx, draft, "b.json", metadata, blobB.Ref())
	require.NoError(t, err)

	require.NoError(t, env.engine.AggregateAssetsSummary(ctx, draft.ID))

	current, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	summary, ok := current.Metadata["assetsSummary"].(map[string]interface{})
	require.True(t, ok, "assetsSummary missing from version metadata")
	assert.EqualValues(t, 6, summary["numberOfBytes"])
	assert.EqualValues(t, 2, summary["numberOfFiles"])
	assert.Equal(t, []interface{}{"application/json", "application/x-nwb"}, summary["encodingFormats"])
}

func TestCompareAndSwapMetadataGuardsOnSeq(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	// A mutation between snapshot and write-back invalidates the seq token
	version, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.Versions().MarkPending(ctx, draft.ID))

	swapped, err := env.store.Versions().CompareAndSwapMetadata(ctx, draft.ID, version.Seq, models.Metadata{})
	require.NoError(t, err)
	assert.False(t, swapped, "stale seq token must be rejected")

	// A fresh snapshot succeeds
	version, err = env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	swapped, err = env.store.Versions().CompareAndSwapMetadata(ctx, draft.ID, version.Seq, models.Metadata{"touched": true})
	require.NoError(t, err)
	assert.True(t, swapped)

	// The metadata write-back itself does not bump the token
	after, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, version.Seq, after.Seq)
}

func TestAssetsSummaryDeterministic(t *testing.T) {
	assets := []*models.Asset{
		{Size: 10, Metadata: models.Metadata{
			"encodingFormat": "b",
			"approach":       []interface{}{map[string]interface{}{"name": "electrophysiology"}},
		}},
		{Size: 5, Metadata: models.Metadata{
			"encodingFormat": "a",
			"approach": []interface{}{
				map[string]interface{}{"name": "electrophysiology"},
				map[string]interface{}{"name": "behavioral"},
			},
		}},
		{Size: 1, Metadata: models.Metadata{}},
	}
	first := AssetsSummary(assets)
	second := AssetsSummary([]*models.Asset{assets[2], assets[0], assets[1]})
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b"}, first["encodingFormats"])
	assert.Equal(t, int64(16), first["numberOfBytes"])

	// Duplicate approaches collapse to one entry
	approaches, ok := first["approach"].([]interface{})
	require.True(t, ok)
	assert.Len(t, approaches, 2)
}

// racingStore hands the engine version reads that go stale before the
// write-back: each raced read bumps the seq right after snapshotting it.
type racingStore struct {
	repository.Store
	races *int
}

func (s *racingStore) Versions() repository.VersionRepository {
	return &racingVersionRepo{VersionRepository: s.Store.Versions(), races: s.races}
}

type racingVersionRepo struct {
	repository.VersionRepository
	races *int
}

func (r *racingVersionRepo) GetByID(ctx context.Context, id int64) (*models.Version, error) {
	version, err := r.VersionRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if *r.races > 0 {
		*r.races--
		if err := r.VersionRepository.MarkPending(ctx, id); err != nil {
			return nil, err
		}
	}
	return version, nil
}

func newRacingEngine(store repository.Store, races *int, maxRetries int) *Engine {
	return NewEngine(&racingStore{Store: store, races: races},
		schema.NewAssetValidator([]string{testSchemaVersion}),
		schema.NewVersionValidator([]string{testSchemaVersion}),
		maxRetries, time.Microsecond, logger.New("error", "json"))
}

func TestAggregateRetriesAfterLostRace(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	_, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	races := 1
	engine := newRacingEngine(env.store, &races, 3)

	require.NoError(t, engine.AggregateAssetsSummary(ctx, draft.ID))
	assert.Zero(t, races)

	// The second attempt landed the summary despite the lost first race
	after, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	summary, ok := after.Metadata["assetsSummary"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, summary["numberOfFiles"])
}

func TestAggregateGivesUpAfterRetryBudget(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	_, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	races := 10
	engine := newRacingEngine(env.store, &races, 2)

	err = engine.AggregateAssetsSummary(ctx, draft.ID)
	assert.ErrorIs(t, err, models.ErrConcurrentModification)

	// maxRetries of 2 allows three attempts, each losing one race
	assert.Equal(t, 7, races)

	after, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.NotContains(t, after.Metadata, "assetsSummary")
}
