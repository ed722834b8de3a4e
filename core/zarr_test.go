package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/models"
)

const testEtag = "0123456789abcdef0123456789abcdef"

func zarrFiles(entries ...models.ZarrFile) []models.ZarrFile {
	return entries
}

func TestRegisterFilesAdjustsTotals(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
	require.NoError(t, err)

	require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/0", Etag: testEtag, Size: 4},
		models.ZarrFile{Path: "0/1", Etag: testEtag, Size: 6},
	)))

	current, err := env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.FileCount)
	assert.Equal(t, int64(10), current.Size)

	// Re-registering a path overwrites the record instead of adding one
	require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/1", Etag: testEtag, Size: 2},
	)))

	current, err = env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.FileCount)
	assert.Equal(t, int64(6), current.Size)

	require.NoError(t, env.zarrs.DeleteFiles(ctx, archive.ZarrID, []string{"0/0"}))
	current, err = env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current.FileCount)
	assert.Equal(t, int64(2), current.Size)
}

func TestRegisterFilesRejectsMalformedEntries(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
	require.NoError(t, err)

	err = env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/0", Etag: "not-an-etag", Size: 4},
	))
	assert.ErrorIs(t, err, models.ErrInvalidDigest)

	err = env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "../escape", Etag: testEtag, Size: 4},
	))
	assert.ErrorIs(t, err, models.ErrInvalidPath)
}

func TestRegisterFilesRejectedDuringIngest(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
	require.NoError(t, err)
	require.NoError(t, env.store.Zarrs().SetStatus(ctx, archive.ID, models.ZarrIngesting, nil))

	err = env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/0", Etag: testEtag, Size: 4},
	))
	assert.ErrorIs(t, err, models.ErrZarrNotPending)

	err = env.zarrs.DeleteFiles(ctx, archive.ZarrID, []string{"0/0"})
	assert.ErrorIs(t, err, models.ErrZarrNotPending)
}

func TestIngestCompletesArchiveAndRevalidatesAssets(t *testing.T) {
	env := newTestEnv(t)
	dandiset, draft := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
	require.NoError(t, err)
	require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/0", Etag: testEtag, Size: 4},
	)))

	// The archive is not COMPLETE yet, so the asset stays PENDING
	asset, err := env.chain.Attach(ctx, draft, "raw.zarr", validMetadata(), models.NewZarrRef(archive.ZarrID))
	require.NoError(t, err)
	require.NoError(t, env.engine.ValidateAsset(ctx, asset.ID))
	current, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, current.Status)

	require.NoError(t, env.zarrs.Ingest(ctx, archive.ZarrID))

	completed, err := env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)
	assert.Equal(t, models.ZarrComplete, completed.Status)
	require.NotNil(t, completed.Checksum)
	assert.True(t, completed.Ready())

	current, err = env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValid, current.Status)
}

func TestIngestIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
	require.NoError(t, err)
	require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/0", Etag: testEtag, Size: 4},
	)))

	require.NoError(t, env.zarrs.Ingest(ctx, archive.ZarrID))
	first, err := env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)

	require.NoError(t, env.zarrs.Ingest(ctx, archive.ZarrID))
	second, err := env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)
	assert.Equal(t, *first.Checksum, *second.Checksum)
}

func TestModifyingCompleteArchiveReopensIt(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
	require.NoError(t, err)
	require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/0", Etag: testEtag, Size: 4},
	)))
	require.NoError(t, env.zarrs.Ingest(ctx, archive.ZarrID))

	require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
		models.ZarrFile{Path: "0/1", Etag: testEtag, Size: 2},
	)))

	reopened, err := env.zarrs.Get(ctx, archive.ZarrID)
	require.NoError(t, err)
	assert.Equal(t, models.ZarrPending, reopened.Status)
	assert.Nil(t, reopened.Checksum)
}

func TestZarrTreeDigestCoversEveryFileAttribute(t *testing.T) {
	base := []*models.ZarrFile{
		{Path: "0/0", Etag: testEtag, Size: 4},
		{Path: "0/1", Etag: testEtag, Size: 2},
	}
	digest := ZarrTreeDigest(base)
	assert.Regexp(t, `^[0-9a-f]{64}-2--6$`, digest)

	// Deterministic for the same file list
	assert.Equal(t, digest, ZarrTreeDigest(base))

	// Any change to path, etag or size changes the digest
	changedSize := []*models.ZarrFile{
		{Path: "0/0", Etag: testEtag, Size: 5},
		{Path: "0/1", Etag: testEtag, Size: 2},
	}
	assert.NotEqual(t, digest, ZarrTreeDigest(changedSize))

	changedEtag := []*models.ZarrFile{
		{Path: "0/0", Etag: "fedcba9876543210fedcba9876543210", Size: 4},
		{Path: "0/1", Etag: testEtag, Size: 2},
	}
	assert.NotEqual(t, digest, ZarrTreeDigest(changedEtag))
}

// A registration racing an ingest must never leave a COMPLETE archive whose
// checksum omits the raced files: the status check shares the registration's
// transaction, so the write either lands before the checksum, is rejected
// during it, or reopens the archive after it.
func TestRegisterFilesRacingIngestKeepsChecksumConsistent(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		archive, err := env.zarrs.Create(ctx, dandiset.ID, "raw.zarr")
		require.NoError(t, err)
		require.NoError(t, env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
			models.ZarrFile{Path: "0/0", Etag: testEtag, Size: 4},
		)))

		var wg sync.WaitGroup
		var registerErr, ingestErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			registerErr = env.zarrs.RegisterFiles(ctx, archive.ZarrID, zarrFiles(
				models.ZarrFile{Path: "0/1", Etag: testEtag, Size: 6},
			))
		}()
		go func() {
			defer wg.Done()
			ingestErr = env.zarrs.Ingest(ctx, archive.ZarrID)
		}()
		wg.Wait()

		require.NoError(t, ingestErr)
		if registerErr != nil {
			require.ErrorIs(t, registerErr, models.ErrZarrNotPending)
		}

		current, err := env.zarrs.Get(ctx, archive.ZarrID)
		require.NoError(t, err)
		files, err := env.store.Zarrs().ListFiles(ctx, current.ID)
		require.NoError(t, err)

		switch current.Status {
		case models.ZarrComplete:
			require.NotNil(t, current.Checksum)
			assert.Equal(t, ZarrTreeDigest(files), *current.Checksum)
		case models.ZarrPending:
			// The registration reopened a just-completed archive
			assert.Nil(t, current.Checksum)
		default:
			t.Fatalf("archive left in status %s", current.Status)
		}
	}
}
