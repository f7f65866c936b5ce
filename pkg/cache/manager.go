package cache

import (
	"fmt"
	"os"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/fetch"
	"github.com/glorpus-work/urlcache/pkg/fsutil"
	"github.com/glorpus-work/urlcache/pkg/index"
)

// DefaultManager implements the Manager interface for a cache root and the
// index that describes it. It must not be used while a fetch engine holds
// the same index open.
type DefaultManager struct {
	directory    string
	indexBackend string
	indexPath    string
}

// NewManager creates a new cache manager. An empty indexPath selects the
// engine's default location for backend.
func NewManager(directory, backend, indexPath string) *DefaultManager {
	if backend == "" {
		backend = index.BackendFile
	}
	return &DefaultManager{
		directory:    directory,
		indexBackend: backend,
		indexPath:    indexPath,
	}
}

// Clean removes cached objects and the index according to options.
func (cm *DefaultManager) Clean(options CleanOptions) (*CleanResult, error) {
	result := &CleanResult{}

	idx, err := cm.readIndex()
	if err != nil {
		return nil, errutils.Wrap(ErrCacheClean, err.Error())
	}
	if idx != nil {
		result.EntriesRemoved = idx.Len()
	}

	size, err := removeAll(cm.IndexLocation())
	if err != nil {
		return nil, fmt.Errorf("%w: index: %w", ErrCacheClean, err)
	}
	result.IndexFreed = size
	result.TotalFreed += size

	if !options.IndexOnly {
		size, count, err := cm.cleanObjects()
		if err != nil {
			return nil, fmt.Errorf("%w: objects: %w", ErrCacheClean, err)
		}
		result.ObjectFreed = size
		result.ObjectsRemoved = count
		result.TotalFreed += size
	}

	logger.Debug("Cache cleaned", logger.Fields{
		"directory":   cm.directory,
		"index":       cm.IndexLocation(),
		"index_only":  options.IndexOnly,
		"freed_bytes": result.TotalFreed,
	})
	return result, nil
}

// GetInfo returns information about the cache.
func (cm *DefaultManager) GetInfo() (*Info, error) {
	info := &Info{
		Directory:     cm.directory,
		IndexLocation: cm.IndexLocation(),
		IndexBackend:  cm.indexBackend,
	}

	objSize, objFiles, err := fsutil.DirSize(cm.directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheInfo, err)
	}
	info.ObjectSize = objSize
	info.ObjectFiles = objFiles

	idxSize, _, err := fsutil.DirSize(info.IndexLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheInfo, err)
	}
	info.IndexSize = idxSize

	idx, err := cm.readIndex()
	if err != nil {
		return nil, errutils.Wrap(ErrCacheInfo, err.Error())
	}
	if idx != nil {
		info.IndexEntries = idx.Len()
		info.LastUpdate = idx.LastUpdate
	}

	info.TotalSize = info.ObjectSize + info.IndexSize
	return info, nil
}

// GetDirectory returns the cache directory path.
func (cm *DefaultManager) GetDirectory() string {
	return cm.directory
}

// SetDirectory sets the cache directory path.
func (cm *DefaultManager) SetDirectory(dir string) error {
	if dir == "" {
		return ErrCacheDirectory
	}
	cm.directory = dir
	return nil
}

// IndexLocation is the index file or LevelDB directory.
func (cm *DefaultManager) IndexLocation() string {
	if cm.indexPath != "" {
		return cm.indexPath
	}
	return fetch.DefaultIndexPath(cm.directory, cm.indexBackend)
}

// readIndex returns nil when no index has been written yet.
func (cm *DefaultManager) readIndex() (*index.Index, error) {
	location := cm.IndexLocation()
	if _, err := os.Stat(location); os.IsNotExist(err) {
		return nil, nil
	}

	store, err := index.OpenStore(cm.indexBackend, location)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return index.Load(store)
}

// cleanObjects empties the object root and returns bytes and files freed.
func (cm *DefaultManager) cleanObjects() (int64, int, error) {
	size, count, err := fsutil.DirSize(cm.directory)
	if err != nil {
		return 0, 0, errutils.Wrapf(err, "error walking directory %s", cm.directory)
	}
	if count == 0 {
		return 0, 0, nil
	}

	if err := os.RemoveAll(cm.directory); err != nil {
		return 0, 0, errutils.Wrapf(err, "failed to remove directory %s", cm.directory)
	}

	if err := os.MkdirAll(cm.directory, os.FileMode(CacheDirPerm)); err != nil {
		return size, count, errutils.Wrapf(err, "failed to recreate directory %s", cm.directory)
	}

	return size, count, nil
}

// removeAll deletes a file or directory and returns the bytes it held.
func removeAll(path string) (int64, error) {
	size, _, err := fsutil.DirSize(path)
	if err != nil {
		return 0, errutils.Wrapf(err, "error walking %s", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return 0, errutils.Wrapf(err, "failed to remove %s", path)
	}
	return size, nil
}
