package objectstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/urlpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) urlpath.Parts {
	t.Helper()
	p, err := urlpath.Parse(raw)
	require.NoError(t, err)
	return p
}

func TestDiskStore_WriteCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(root)
	require.NoError(t, err)

	parts := mustParse(t, "http://example.com/a/b/file.txt")
	require.NoError(t, s.Write(parts, []byte("hello")))

	want := filepath.Join(root, "example.com", "a", "b", "file.txt")
	assert.Equal(t, want, s.Path(parts))

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDiskStore_WriteReplaces(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	parts := mustParse(t, "http://example.com/file.txt")
	require.NoError(t, s.Write(parts, []byte("a much longer first body")))
	require.NoError(t, s.Write(parts, []byte("short")))

	data, err := os.ReadFile(s.Path(parts))
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestDiskStore_WriteEmptyBody(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	parts := mustParse(t, "http://example.com/empty")
	require.NoError(t, s.Write(parts, []byte{}))

	info, err := os.Stat(s.Path(parts))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestDiskStore_Remove(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	parts := mustParse(t, "http://example.com/a/file.txt")
	require.NoError(t, s.Write(parts, []byte("x")))
	require.NoError(t, s.Remove(parts))
	assert.NoFileExists(t, s.Path(parts))

	// already gone
	assert.NoError(t, s.Remove(parts))
}

func TestDiskStore_WriteFailure(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStore(root)
	require.NoError(t, err)

	// a regular file where the host directory should be
	require.NoError(t, os.WriteFile(filepath.Join(root, "example.com"), []byte("blocker"), 0o644))

	err = s.Write(mustParse(t, "http://example.com/a/file.txt"), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrStorage)
}

func TestDiskStore_RejectsEscapingParts(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	// not reachable through urlpath.Parse, but the store checks anyway
	err = s.Write(urlpath.Parts{Host: "..", Filename: "passwd"}, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrStorage)
}

func TestNewDiskStore_EmptyRoot(t *testing.T) {
	_, err := NewDiskStore("")
	assert.ErrorIs(t, err, errutils.ErrStorage)
}
