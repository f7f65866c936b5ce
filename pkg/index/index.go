// Package index holds the persisted URL to last-modified mapping that decides
// whether a fetch skips, downloads or replaces an object.
package index

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

const (
	// FormatVersion is written into every saved index.
	FormatVersion = "1.0"
	// supportedFormats is the range of format versions this build can read.
	supportedFormats = ">= 1.0, < 2.0"
)

// Index maps an absolute URL to the Last-Modified time, in epoch
// milliseconds, of the object stored for it. A URL is present only if its
// object was fully stored.
type Index struct {
	FormatVersion string           `json:"format_version"`
	LastUpdate    time.Time        `json:"last_update"`
	Entries       map[string]int64 `json:"entries"`
}

// New creates an empty index.
func New() *Index {
	return &Index{
		FormatVersion: FormatVersion,
		Entries:       make(map[string]int64),
	}
}

// Get returns the timestamp recorded for url.
func (idx *Index) Get(url string) (int64, bool) {
	millis, ok := idx.Entries[url]
	return millis, ok
}

// Put records millis for url, replacing any existing entry.
func (idx *Index) Put(url string, millis int64) {
	if idx.Entries == nil {
		idx.Entries = make(map[string]int64)
	}
	idx.Entries[url] = millis
	idx.LastUpdate = time.Now().UTC()
}

// Delete removes url and reports whether it was present.
func (idx *Index) Delete(url string) bool {
	if _, ok := idx.Entries[url]; !ok {
		return false
	}
	delete(idx.Entries, url)
	idx.LastUpdate = time.Now().UTC()
	return true
}

// Len is the number of entries.
func (idx *Index) Len() int {
	return len(idx.Entries)
}

// URLs returns the indexed URLs in sorted order.
func (idx *Index) URLs() []string {
	urls := make([]string, 0, len(idx.Entries))
	for u := range idx.Entries {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Clone returns a deep copy.
func (idx *Index) Clone() *Index {
	c := &Index{
		FormatVersion: idx.FormatVersion,
		LastUpdate:    idx.LastUpdate,
		Entries:       make(map[string]int64, len(idx.Entries)),
	}
	for k, v := range idx.Entries {
		c.Entries[k] = v
	}
	return c
}

// ToJSON encodes the index for the file backend.
func (idx *Index) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, errutils.Wrapf(errutils.ErrStorage, "marshal index: %v", err)
	}
	return data, nil
}

// ParseIndex decodes a JSON index and checks that its format version is one
// this build understands.
func ParseIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errutils.Wrapf(errutils.ErrCorruptCache, "parse index: %v", err)
	}
	if err := checkFormatVersion(idx.FormatVersion); err != nil {
		return nil, err
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]int64)
	}
	return &idx, nil
}

func checkFormatVersion(v string) error {
	if v == "" {
		return errutils.Wrap(errutils.ErrCorruptCache, "missing format version")
	}
	parsed, err := version.NewVersion(v)
	if err != nil {
		return errutils.Wrapf(errutils.ErrCorruptCache, "invalid format version %q", v)
	}
	constraint, err := version.NewConstraint(supportedFormats)
	if err != nil {
		return errutils.Wrapf(errutils.ErrCorruptCache, "invalid format constraint: %v", err)
	}
	if !constraint.Check(parsed) {
		return errutils.Wrapf(errutils.ErrCorruptCache, "unsupported format version %s (want %s)", v, supportedFormats)
	}
	return nil
}
