package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/common/repository/memory"
	"github.com/dandihub/archive/common/schema"
	"github.com/dandihub/archive/common/storage"
)

const testSchemaVersion = "0.6.2"

type testEnv struct {
	store        *memory.Store
	blobs        *storage.MemoryStore
	paths        *PathIndex
	chain        *AssetChain
	engine       *Engine
	zarrs        *ZarrService
	uploads      *UploadService
	queue        *queue.MemoryQueue
	orchestrator *Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.New("error", "json")
	store := memory.NewStore()
	blobs := storage.NewMemoryStore()

	paths := NewPathIndex(store, log)
	chain := NewAssetChain(store, paths, log)
	engine := NewEngine(store,
		schema.NewAssetValidator([]string{testSchemaVersion}),
		schema.NewVersionValidator([]string{testSchemaVersion}),
		3, time.Millisecond, log)
	zarrs := NewZarrService(store, engine, log)
	uploads := NewUploadService(store, blobs, engine, log)
	workQueue := queue.NewMemoryQueue(log)
	orchestrator := NewOrchestrator(store, chain, engine, workQueue, true, testSchemaVersion, log)

	return &testEnv{
		store:        store,
		blobs:        blobs,
		paths:        paths,
		chain:        chain,
		engine:       engine,
		zarrs:        zarrs,
		uploads:      uploads,
		queue:        workQueue,
		orchestrator: orchestrator,
	}
}

// newDraft creates a dandiset with its draft version
func (e *testEnv) newDraft(t *testing.T) (*models.Dandiset, *models.Version) {
	t.Helper()
	ctx := context.Background()

	dandiset := &models.Dandiset{EmbargoStatus: models.EmbargoOpen}
	require.NoError(t, e.store.Dandisets().Create(ctx, dandiset))

	draft := &models.Version{
		DandisetID: dandiset.ID,
		Version:    models.DraftVersion,
		Metadata:   models.Metadata{"schemaVersion": testSchemaVersion},
		Status:     models.StatusPending,
	}
	require.NoError(t, e.store.Versions().Create(ctx, draft))
	return dandiset, draft
}

// newReadyBlob stores content and registers a blob with its digest filled in
func (e *testEnv) newReadyBlob(t *testing.T, content []byte) *models.AssetBlob {
	t.Helper()
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("blobs/%s", digest[:8])
	e.blobs.Put(key, content)

	blob := &models.AssetBlob{
		BlobID:     uuid.New(),
		StorageKey: key,
		Etag:       digest[:32],
		Size:       int64(len(content)),
		Digest:     &digest,
	}
	require.NoError(t, e.store.Blobs().Create(context.Background(), blob))
	return blob
}

// newPendingBlob registers a blob whose digest has not been computed yet
func (e *testEnv) newPendingBlob(t *testing.T, content []byte) *models.AssetBlob {
	t.Helper()
	key := fmt.Sprintf("blobs/pending-%s", uuid.New().String()[:8])
	e.blobs.Put(key, content)

	blob := &models.AssetBlob{
		BlobID:     uuid.New(),
		StorageKey: key,
		Etag:       "0123456789abcdef0123456789abcdef",
		Size:       int64(len(content)),
	}
	require.NoError(t, e.store.Blobs().Create(context.Background(), blob))
	return blob
}

func validMetadata() models.Metadata {
	return models.Metadata{
		"schemaVersion":  testSchemaVersion,
		"encodingFormat": "application/x-nwb",
	}
}

func TestAttachRejectsNonDraftVersion(t *testing.T) {
	env := newTestEnv(t)
	dandiset, _ := env.newDraft(t)
	ctx := context.Background()

	published := &models.Version{
		DandisetID: dandiset.ID,
		Version:    "0.230101.1234",
		Metadata:   models.Metadata{},
		Status:     models.StatusValid,
	}
	require.NoError(t, env.store.Versions().Create(ctx, published))

	blob := env.newReadyBlob(t, []byte("data"))
	_, err := env.chain.Attach(ctx, published, "sub-01/data.nwb", validMetadata(), blob.Ref())
	assert.ErrorIs(t, err, models.ErrVersionImmutable)
}

func TestAttachRejectsDuplicatePath(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("one"))
	_, err := env.chain.Attach(ctx, draft, "sub-01/data.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	other := env.newReadyBlob(t, []byte("two"))
	_, err = env.chain.Attach(ctx, draft, "sub-01/data.nwb", validMetadata(), other.Ref())
	assert.ErrorIs(t, err, models.ErrDuplicatePath)
}

func TestAttachRejectsMalformedPath(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()
	blob := env.newReadyBlob(t, []byte("data"))

	for _, path := range []string{"", "/leading/slash", "trailing/slash/", "dots/../escape", "double//sep"} {
		_, err := env.chain.Attach(ctx, draft, path, validMetadata(), blob.Ref())
		assert.ErrorIs(t, err, models.ErrInvalidPath, "path %q", path)
	}
}

func TestAttachRejectsMissingContent(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)

	_, err := env.chain.Attach(context.Background(), draft, "a.nwb", validMetadata(), models.ContentRef{})
	assert.ErrorIs(t, err, models.ErrContentRefConflict)

	_, err = env.chain.Attach(context.Background(), draft, "a.nwb", validMetadata(), models.NewBlobRef(uuid.New()))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttachBumpsSeqAndMarksPending(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	require.NoError(t, env.store.Versions().SetStatus(ctx, draft.ID, models.StatusValid, nil))

	blob := env.newReadyBlob(t, []byte("data"))
	_, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	after, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, after.Status)
	assert.Greater(t, after.Seq, draft.Seq)
}

func TestReplaceKeepsAssetIDAndChainsRecords(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("v1"))
	original, err := env.chain.Attach(ctx, draft, "sub-01/old.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	newBlob := env.newReadyBlob(t, []byte("v2"))
	replacement, err := env.chain.Replace(ctx, draft, original, "sub-01/new.nwb", validMetadata(), newBlob.Ref())
	require.NoError(t, err)

	assert.Equal(t, original.AssetID, replacement.AssetID)
	assert.NotEqual(t, original.ID, replacement.ID)
	require.NotNil(t, replacement.PreviousID)
	assert.Equal(t, original.ID, *replacement.PreviousID)

	// The live record for the external id is now the replacement
	live, err := env.store.Assets().GetLiveByAssetID(ctx, draft.ID, original.AssetID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, live.ID)
	assert.Equal(t, "sub-01/new.nwb", live.Path)
}

func TestReplaceWithIdenticalContentIsNoop(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("v1"))
	original, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	before, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)

	same, err := env.chain.Replace(ctx, draft, original, "a.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)
	assert.Equal(t, original.ID, same.ID)

	// No new record, no seq bump
	after, err := env.store.Versions().GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Seq, after.Seq)
}

func TestReplaceRejectsPathTakenByOtherAsset(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blobA := env.newReadyBlob(t, []byte("a"))
	_, err := env.chain.Attach(ctx, draft, "a.nwb", validMetadata(), blobA.Ref())
	require.NoError(t, err)

	blobB := env.newReadyBlob(t, []byte("b"))
	b, err := env.chain.Attach(ctx, draft, "b.nwb", validMetadata(), blobB.Ref())
	require.NoError(t, err)

	_, err = env.chain.Replace(ctx, draft, b, "a.nwb", validMetadata(), blobB.Ref())
	assert.ErrorIs(t, err, models.ErrDuplicatePath)
}

func TestDetachRemovesLiveRecord(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("data"))
	asset, err := env.chain.Attach(ctx, draft, "sub-01/data.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	require.NoError(t, env.chain.Detach(ctx, draft, asset))

	_, err = env.store.Assets().GetLiveByAssetID(ctx, draft.ID, asset.AssetID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// The record itself survives for history
	historic, err := env.store.Assets().GetByRowID(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.AssetID, historic.AssetID)
}

func TestConcurrentReplaceLeavesSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	ctx := context.Background()

	blob := env.newReadyBlob(t, []byte("v1"))
	original, err := env.chain.Attach(ctx, draft, "sub-01/data.nwb", validMetadata(), blob.Ref())
	require.NoError(t, err)

	// Two replacements race on the same record and path. Whichever commits
	// first retires the original; the other must fail on the taken path.
	payloads := []models.Metadata{
		{"schemaVersion": testSchemaVersion, "encodingFormat": "application/x-nwb", "rev": "a"},
		{"schemaVersion": testSchemaVersion, "encodingFormat": "application/x-nwb", "rev": "b"},
	}
	newBlob := env.newReadyBlob(t, []byte("v2"))

	var wg sync.WaitGroup
	errs := make([]error, len(payloads))
	for i := range payloads {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.chain.Replace(ctx, draft, original, "sub-01/data.nwb", payloads[i], newBlob.Ref())
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, models.ErrDuplicatePath)
		}
	}
	assert.Equal(t, 1, failures)

	// Exactly one live record remains, chained to the original
	live, err := env.store.Assets().ListLiveByVersion(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, original.AssetID, live[0].AssetID)
	require.NotNil(t, live[0].PreviousID)
	assert.Equal(t, original.ID, *live[0].PreviousID)

	// The path index still counts a single file
	children, err := env.paths.ChildrenOf(ctx, draft.ID, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, int64(1), children[0].FileCount)
	assert.Equal(t, live[0].Size, children[0].TotalSize)
}

func TestAttachRejectsZarrFromOtherDandiset(t *testing.T) {
	env := newTestEnv(t)
	_, draft := env.newDraft(t)
	other, _ := env.newDraft(t)
	ctx := context.Background()

	archive, err := env.zarrs.Create(ctx, other.ID, "foreign.zarr")
	require.NoError(t, err)

	_, err = env.chain.Attach(ctx, draft, "data.zarr", validMetadata(), archive.Ref())
	assert.ErrorIs(t, err, models.ErrCrossDandisetZarr)
}
