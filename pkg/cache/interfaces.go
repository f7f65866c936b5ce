package cache

import "time"

// Manager defines the interface for cache management operations.
type Manager interface {
	Clean(options CleanOptions) (*CleanResult, error)
	GetInfo() (*Info, error)
	GetDirectory() string
	SetDirectory(dir string) error
}

// CleanOptions specifies what to clean from the cache. Objects are never
// removed without their index, so the only partial clean is IndexOnly.
type CleanOptions struct {
	All       bool
	IndexOnly bool
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed     int64
	ObjectFreed    int64
	ObjectsRemoved int
	IndexFreed     int64
	EntriesRemoved int
}

// Info represents cache information.
type Info struct {
	Directory     string
	IndexLocation string
	IndexBackend  string
	TotalSize     int64
	ObjectSize    int64
	ObjectFiles   int
	IndexSize     int64
	IndexEntries  int
	// LastUpdate is when the index last changed; zero for an empty cache.
	LastUpdate time.Time
}
