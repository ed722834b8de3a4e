// Package memory provides an in-process implementation of the repository
// interfaces. It backs tests and single-node development the same way the
// memory queue backs the queue interface; production deployments use the
// postgres store.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
)

// Store is an in-memory repository bundle. A store-wide mutex serializes
// transactions, which gives the same single-writer-per-version discipline
// the postgres store gets from serializable transactions. There is no
// rollback: callers check preconditions before mutating, so failed
// operations leave no partial state.
type Store struct {
	mu   *sync.Mutex
	inTx bool
	data *data
}

type data struct {
	dandisets      map[int]*models.Dandiset
	nextDandisetID int

	versions      map[int64]*models.Version
	nextVersionID int64

	assets      map[int64]*models.Asset
	nextAssetID int64

	// versionAssets is the live membership: version row id -> set of
	// asset row ids
	versionAssets map[int64]map[int64]bool

	blobs      map[uuid.UUID]*models.AssetBlob
	nextBlobID int64

	zarrs      map[uuid.UUID]*models.ZarrArchive
	zarrsByRow map[int64]*models.ZarrArchive
	nextZarrID int64

	zarrFiles      map[int64]map[string]*models.ZarrFile
	nextZarrFileID int64

	// pathNodes: version row id -> node path -> node
	pathNodes  map[int64]map[string]*models.PathNode
	nextNodeID int64

	uploads      map[string]*models.Upload
	nextUploadID int64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &data{
			dandisets:     make(map[int]*models.Dandiset),
			versions:      make(map[int64]*models.Version),
			assets:        make(map[int64]*models.Asset),
			versionAssets: make(map[int64]map[int64]bool),
			blobs:         make(map[uuid.UUID]*models.AssetBlob),
			zarrs:         make(map[uuid.UUID]*models.ZarrArchive),
			zarrsByRow:    make(map[int64]*models.ZarrArchive),
			zarrFiles:     make(map[int64]map[string]*models.ZarrFile),
			pathNodes:     make(map[int64]map[string]*models.PathNode),
			uploads:       make(map[string]*models.Upload),
		},
	}
}

func (s *Store) Dandisets() repository.DandisetRepository { return &dandisetRepo{s} }
func (s *Store) Versions() repository.VersionRepository   { return &versionRepo{s} }
func (s *Store) Assets() repository.AssetRepository       { return &assetRepo{s} }
func (s *Store) Blobs() repository.BlobRepository         { return &blobRepo{s} }
func (s *Store) Zarrs() repository.ZarrRepository         { return &zarrRepo{s} }
func (s *Store) Paths() repository.PathRepository         { return &pathRepo{s} }
func (s *Store) Uploads() repository.UploadRepository     { return &uploadRepo{s} }

// WithTx serializes fn on the store-wide lock. Nested calls reuse the
// enclosing lock.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Store{mu: s.mu, inTx: true, data: s.data})
}

// lock acquires the store lock for a single repository call, unless an
// enclosing transaction already holds it
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}
