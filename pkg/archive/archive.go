// Package archive exports a cache root and its index as a single .tar.gz
// snapshot and restores such snapshots.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/mholt/archives"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/fsutil"
	"github.com/glorpus-work/urlcache/pkg/index"
)

// Names inside a snapshot. The index is stored as JSON whatever backend it
// was exported from.
const (
	ObjectsDir = "objects"
	IndexFile  = "index.json"
)

// Manager creates and restores cache snapshots.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// Export writes the objects under cacheRoot and idx to archivePath.
func (am *Manager) Export(ctx context.Context, cacheRoot string, idx *index.Index, archivePath string) error {
	absRoot, err := filepath.Abs(cacheRoot)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for cache root: %w", err)
	}
	if err := fsutil.EnsureDir(absRoot); err != nil {
		return errutils.Wrap(errutils.ErrStorage, err.Error())
	}

	data, err := idx.ToJSON()
	if err != nil {
		return err
	}
	tmpDir, err := os.MkdirTemp("", fsutil.AppName+"-export-")
	if err != nil {
		return errutils.Wrap(errutils.ErrStorage, err.Error())
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	indexPath := filepath.Join(tmpDir, IndexFile)
	if err := os.WriteFile(indexPath, data, fsutil.FileModeDefault); err != nil {
		return errutils.Wrap(errutils.ErrStorage, err.Error())
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absRoot + string(os.PathSeparator): ObjectsDir,
		indexPath:                          IndexFile,
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}

	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	logger.Debug("Cache exported", logger.Fields{
		"archive": archivePath,
		"entries": idx.Len(),
		"files":   len(archiveFiles),
	})
	return nil
}

// Import extracts the objects of the snapshot at archivePath into cacheRoot,
// overwriting objects with the same path, and returns the snapshot's index.
func (am *Manager) Import(ctx context.Context, archivePath, cacheRoot string) (*index.Index, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	data, err := fs.ReadFile(fsys, IndexFile)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot has no %s: %w", errutils.ErrCorruptCache, IndexFile, err)
	}
	idx, err := index.ParseIndex(data)
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for cache root: %w", err)
	}
	if err := fsutil.EnsureDir(absRoot); err != nil {
		return nil, errutils.Wrap(errutils.ErrStorage, err.Error())
	}

	walkFn := func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return am.extractEntry(fsys, name, absRoot, d)
	}
	if err := fs.WalkDir(fsys, ObjectsDir, walkFn); err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	logger.Debug("Cache imported", logger.Fields{"archive": archivePath, "entries": idx.Len()})
	return idx, nil
}

// extractEntry writes one entry below objects/ into destDir.
func (am *Manager) extractEntry(fsys fs.FS, name, destDir string, d fs.DirEntry) error {
	rel := path.Clean(name[len(ObjectsDir):])
	if rel == "/" || rel == "." {
		return nil
	}

	targetPath := filepath.Join(destDir, filepath.FromSlash(rel))
	if !fsutil.IsWithin(destDir, targetPath) {
		return fmt.Errorf("%w: archive entry %s escapes the cache root", errutils.ErrInvalidPath, name)
	}

	if d.IsDir() {
		return os.MkdirAll(targetPath, fsutil.DirModeDefault)
	}

	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("failed to get file info for %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		logger.Warn("Skipping non-regular archive entry", logger.Fields{"entry": name, "mode": info.Mode().String()})
		return nil
	}

	return am.writeRegularFile(fsys, name, targetPath, info)
}

// writeRegularFile writes a regular file from the archive entry to targetPath and preserves its mtime.
func (am *Manager) writeRegularFile(fsys fs.FS, name, targetPath string, info fs.FileInfo) error {
	srcFile, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", name, err)
	}
	defer func() { _ = srcFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(targetPath), fsutil.DirModeDefault); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", name, err)
	}

	dstFile, err := fsutil.CreateFilePerm(targetPath, fsutil.FileModeDefault)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", targetPath, err)
	}
	defer func() { _ = dstFile.Close() }()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file %s: %w", name, err)
	}

	if err := os.Chtimes(targetPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set modification time for %s: %w", targetPath, err)
	}
	return nil
}
