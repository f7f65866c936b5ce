// Package fsutil provides file system helpers shared by the object store,
// the index backends and the configuration loader.
package fsutil

// File and directory permission constants.
const (
	FileModeDefault = 0o644 // -rw-r--r--: stored objects and the index file
	FileModeSecure  = 0o640 // -rw-r-----: config files

	DirModeDefault = 0o755 // drwxr-xr-x: object tree under the cache root
	DirModeSecure  = 0o750 // drwxr-x---: config and index directories
)

// AppName is the directory name used below the platform cache and config dirs.
const AppName = "urlcache"
