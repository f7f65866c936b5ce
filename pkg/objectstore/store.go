//go:generate mockgen -destination=./mocks/store.go . Store

// Package objectstore persists downloaded bodies under a cache root, at
// <root>/<host>/<path>/<filename>.
package objectstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/fsutil"
	"github.com/glorpus-work/urlcache/pkg/urlpath"
)

// Store writes and removes cached objects.
type Store interface {
	// Write creates any missing directories and replaces the object with body.
	Write(parts urlpath.Parts, body []byte) error
	// Remove deletes the object. A missing object is not an error.
	Remove(parts urlpath.Parts) error
	// Path is where the object for parts lives.
	Path(parts urlpath.Parts) string
}

// DiskStore is a Store rooted at a directory on the local filesystem.
type DiskStore struct {
	root string
}

// NewDiskStore returns a store rooted at root. The directory is created on
// first write.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, errutils.Wrap(errutils.ErrStorage, "cache root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errutils.Wrapf(errutils.ErrStorage, "resolve cache root %s: %v", root, err)
	}
	return &DiskStore{root: abs}, nil
}

// Root is the absolute cache root.
func (s *DiskStore) Root() string {
	return s.root
}

// Path implements Store.
func (s *DiskStore) Path(parts urlpath.Parts) string {
	return filepath.Join(s.root, parts.RelPath())
}

// Write implements Store. The body is written straight to its final path,
// truncating whatever was there.
func (s *DiskStore) Write(parts urlpath.Parts, body []byte) error {
	dst, err := s.checkedPath(parts)
	if err != nil {
		return err
	}

	if err := fsutil.EnsureFileDir(dst); err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "create directory for %s: %v", dst, err)
	}

	f, err := fsutil.CreateFilePerm(dst, fsutil.FileModeDefault)
	if err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "open %s: %v", dst, err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return errutils.Wrapf(errutils.ErrStorage, "write %s: %v", dst, err)
	}
	if err := f.Close(); err != nil {
		return errutils.Wrapf(errutils.ErrStorage, "close %s: %v", dst, err)
	}
	return nil
}

// Remove implements Store.
func (s *DiskStore) Remove(parts urlpath.Parts) error {
	dst, err := s.checkedPath(parts)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errutils.Wrapf(errutils.ErrStorage, "remove %s: %v", dst, err)
	}
	return nil
}

func (s *DiskStore) checkedPath(parts urlpath.Parts) (string, error) {
	dst := s.Path(parts)
	if dst == s.root || !fsutil.IsWithin(s.root, dst) {
		return "", fmt.Errorf("%w: %s resolves outside cache root", errutils.ErrStorage, parts.RelPath())
	}
	return dst, nil
}
