package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/glorpus-work/urlcache/internal/logger"
)

// CacheOperation renders cache management results for the command line.
type CacheOperation struct {
	manager Manager
}

// NewCacheOperation creates a new cache operation instance.
func NewCacheOperation(manager Manager) *CacheOperation {
	return &CacheOperation{
		manager: manager,
	}
}

// Clean cleans the cache and describes what was freed.
func (op *CacheOperation) Clean(indexOnly bool) (string, error) {
	options := CleanOptions{All: !indexOnly, IndexOnly: indexOnly}

	logger.Debug("Cleaning cache", logger.Fields{
		"directory":  op.manager.GetDirectory(),
		"index_only": indexOnly,
	})

	result, err := op.manager.Clean(options)
	if err != nil {
		return "", err
	}

	if result.TotalFreed == 0 && result.EntriesRemoved == 0 && result.ObjectsRemoved == 0 {
		return "No files were removed from the cache.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Successfully cleaned cache. Freed %s of disk space.", humanize.IBytes(uint64(result.TotalFreed)))
	fmt.Fprintf(&b, "\n- Index:   %s (%s)", humanize.IBytes(uint64(result.IndexFreed)), plural(result.EntriesRemoved, "entry", "entries"))
	if !indexOnly {
		fmt.Fprintf(&b, "\n- Objects: %s (%s)", humanize.IBytes(uint64(result.ObjectFreed)), plural(result.ObjectsRemoved, "file", "files"))
	}
	return b.String(), nil
}

// GetInfo returns information about the cache.
func (op *CacheOperation) GetInfo() (string, error) {
	info, err := op.manager.GetInfo()
	if err != nil {
		return "", err
	}

	lastUpdate := "never"
	if !info.LastUpdate.IsZero() {
		lastUpdate = fmt.Sprintf("%s (%s)", info.LastUpdate.Format(time.RFC1123), humanize.Time(info.LastUpdate))
	}

	return fmt.Sprintf(`Cache Information:
  Directory:    %s
  Index:        %s (%s)
  Total Size:   %s
  Objects:      %s (%s)
  Index Size:   %s (%s)
  Last Update:  %s`,
		info.Directory,
		info.IndexLocation,
		info.IndexBackend,
		humanize.IBytes(uint64(info.TotalSize)),
		humanize.IBytes(uint64(info.ObjectSize)),
		plural(info.ObjectFiles, "file", "files"),
		humanize.IBytes(uint64(info.IndexSize)),
		plural(info.IndexEntries, "entry", "entries"),
		lastUpdate,
	), nil
}

// GetDirectory returns the cache directory path.
func (op *CacheOperation) GetDirectory() string {
	return op.manager.GetDirectory()
}

// SetDirectory sets a new cache directory.
func (op *CacheOperation) SetDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: cache directory cannot be empty", ErrCacheDirectory)
	}

	logger.Debug("Setting cache directory", logger.Fields{"directory": dir})
	return op.manager.SetDirectory(dir)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%s %s", humanize.Comma(int64(n)), one)
	}
	return fmt.Sprintf("%s %s", humanize.Comma(int64(n)), many)
}
