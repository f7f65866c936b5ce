package cache

import "fmt"

var (
	// ErrCacheClean means the index or the stored objects could not be removed.
	ErrCacheClean = fmt.Errorf("failed to clean cache")

	// ErrCacheInfo means the cache root or index could not be measured.
	ErrCacheInfo = fmt.Errorf("failed to read cache info")

	// ErrCacheDirectory means the cache root is unset or not a directory.
	ErrCacheDirectory = fmt.Errorf("invalid cache root")
)
