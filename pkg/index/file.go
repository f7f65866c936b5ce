package index

import (
	"errors"
	"os"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/fsutil"
)

// FileStore keeps the index as a single JSON document.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errutils.Wrap(errutils.ErrStorage, "index path cannot be empty")
	}
	return &FileStore{path: path}, nil
}

// Location implements Store.
func (s *FileStore) Location() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load() (*Index, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return New(), errutils.Wrapf(errutils.ErrCorruptCache, "read %s: %v", s.path, err)
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return New(), errutils.Wrap(err, s.path)
	}
	return idx, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(idx *Index) error {
	data, err := idx.ToJSON()
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path, data, fsutil.FileModeDefault); err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "save index: %v", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
