package index

import (
	"errors"
	"strings"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// Backend names accepted by OpenStore.
const (
	BackendFile    = "file"
	BackendLevelDB = "leveldb"
)

// Store persists an Index between process runs.
type Store interface {
	// Load returns the persisted index, or an empty one if nothing was saved
	// yet. An unreadable index yields an empty index together with an error
	// wrapping errutils.ErrCorruptCache.
	Load() (*Index, error)
	// Save fully replaces the persisted index.
	Save(idx *Index) error
	Close() error
	// Location is the file or directory backing the store.
	Location() string
}

// OpenStore opens the named backend at location.
func OpenStore(backend, location string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileStore(location)
	case BackendLevelDB:
		return OpenLevelDBStore(location)
	default:
		return nil, errutils.ErrInvalidIndexBackendWithDetails(backend)
	}
}

// Load reads the index from s. A corrupt index is logged and replaced by an
// empty one; every other error is returned.
func Load(s Store) (*Index, error) {
	idx, err := s.Load()
	if err == nil {
		return idx, nil
	}
	if errors.Is(err, errutils.ErrCorruptCache) {
		logger.Warn("Cache index is unreadable, starting with an empty index", logger.Fields{
			"location": s.Location(),
			"error":    err.Error(),
		})
		return New(), nil
	}
	return nil, err
}
