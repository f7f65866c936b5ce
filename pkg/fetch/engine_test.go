package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/hooks"
	"github.com/glorpus-work/urlcache/pkg/index"
	mock_objectstore "github.com/glorpus-work/urlcache/pkg/objectstore/mocks"
	"github.com/glorpus-work/urlcache/pkg/urlpath"
	"github.com/glorpus-work/urlcache/test/testutil"
)

const (
	date1994   = "Tue, 15 Nov 1994 08:12:31 GMT"
	millis1994 = int64(784887151000)
	date2024   = "Sat, 09 Mar 2024 20:15:00 GMT"
	millis2024 = int64(1710015300000)
)

type fixture struct {
	srv  *testutil.OriginServer
	root string
	opts Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "cache")
	return &fixture{
		srv:  testutil.NewOriginServer(t),
		root: root,
		opts: Options{
			CacheRoot:   root,
			IndexPath:   filepath.Join(dir, "index.json"),
			DialTimeout: 2 * time.Second,
			ReadTimeout: 2 * time.Second,
		},
	}
}

func (f *fixture) open(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(f.opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func (f *fixture) objectPath(target string) string {
	return filepath.Join(f.root, "127.0.0.1", filepath.FromSlash(strings.TrimPrefix(target, "/")))
}

func TestFetch_FirstDownload(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/a/b/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})
	eng := f.open(t)

	url := f.srv.URL("a/b/file.txt")
	outcome, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)

	millis, ok := eng.LastModifiedOf(url)
	require.True(t, ok)
	assert.Equal(t, millis1994, millis)
	assert.Equal(t, "hello", testutil.MustReadFile(t, f.objectPath("/a/b/file.txt")))

	reqs := f.srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET /a/b/file.txt HTTP/1.1\r\nHost: "+f.srv.Addr()+"\r\nConnection: close\r\n\r\n", reqs[0])

	// saved on every call
	saved, err := index.NewFileStore(f.opts.IndexPath)
	require.NoError(t, err)
	idx, err := saved.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{url: millis1994}, idx.Entries)
}

func TestFetch_UnchangedIsSkippedWithoutReadingBody(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})
	eng := f.open(t)
	url := f.srv.URL("file.txt")

	outcome, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, Downloaded, outcome)

	// a body read would now hang until the read timeout and fail
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "other", HoldBody: true})
	eng.opts.ReadTimeout = 5 * time.Second

	start := time.Now()
	outcome, err = eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, "hello", testutil.MustReadFile(t, f.objectPath("/file.txt")))
}

func TestFetch_ChangedIsReplaced(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/a/file.txt", testutil.Response{LastModified: date1994, Body: "a much longer old body"})
	eng := f.open(t)
	url := f.srv.URL("a/file.txt")

	_, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)

	f.srv.Handle("/a/file.txt", testutil.Response{LastModified: date2024, Body: "new"})
	outcome, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Replaced, outcome)

	millis, _ := eng.LastModifiedOf(url)
	assert.Equal(t, millis2024, millis)
	assert.Equal(t, "new", testutil.MustReadFile(t, f.objectPath("/a/file.txt")))
}

func TestFetch_ZeroLength(t *testing.T) {
	f := newFixture(t)
	// the server keeps the connection open; nothing may be read after the head
	f.srv.Handle("/empty", testutil.Response{LastModified: date1994, HoldBody: true})
	eng := f.open(t)

	outcome, err := eng.Fetch(context.Background(), f.srv.URL("empty"))
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)

	info, err := os.Stat(f.objectPath("/empty"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFetch_MalformedDateLeavesIndexAlone(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/new.txt", testutil.Response{LastModified: "sometime in 1994", Body: "x"})
	f.srv.Handle("/old.txt", testutil.Response{LastModified: date1994, Body: "old"})
	eng := f.open(t)

	_, err := eng.Fetch(context.Background(), f.srv.URL("old.txt"))
	require.NoError(t, err)
	f.srv.Handle("/old.txt", testutil.Response{LastModified: "Tue, 15 Nov 1994", Body: "x"})

	_, err = eng.Fetch(context.Background(), f.srv.URL("new.txt"))
	assert.ErrorIs(t, err, errutils.ErrDateFormat)
	_, ok := eng.LastModifiedOf(f.srv.URL("new.txt"))
	assert.False(t, ok)
	assert.NoFileExists(t, f.objectPath("/new.txt"))

	_, err = eng.Fetch(context.Background(), f.srv.URL("old.txt"))
	assert.ErrorIs(t, err, errutils.ErrDateFormat)
	millis, ok := eng.LastModifiedOf(f.srv.URL("old.txt"))
	assert.True(t, ok)
	assert.Equal(t, millis1994, millis)
	assert.Equal(t, "old", testutil.MustReadFile(t, f.objectPath("/old.txt")))
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    testutil.Response
		wantErr error
	}{
		{
			name:    "truncated body",
			resp:    testutil.Response{LastModified: date1994, Body: "short", ExplicitLength: true, ContentLength: 10},
			wantErr: errutils.ErrTruncatedBody,
		},
		{
			name:    "declared length far beyond body",
			resp:    testutil.Response{Raw: "HTTP/1.1 200 OK\r\nLast-Modified: " + date1994 + "\r\nContent-Length: 9223372036854775807\r\n\r\nhello"},
			wantErr: errutils.ErrTruncatedBody,
		},
		{
			name:    "not found",
			resp:    testutil.Response{Status: "404 Not Found", LastModified: date1994},
			wantErr: errutils.ErrUnexpectedStatus,
		},
		{
			name:    "missing content-length",
			resp:    testutil.Response{LastModified: date1994, OmitLength: true, Body: "x"},
			wantErr: errutils.ErrMalformedResponse,
		},
		{
			name:    "missing last-modified",
			resp:    testutil.Response{Body: "x"},
			wantErr: errutils.ErrMalformedResponse,
		},
		{
			name:    "no header boundary",
			resp:    testutil.Response{Raw: "HTTP/1.1 200 OK\r\nLast-Modified: " + date1994 + "\r\n"},
			wantErr: errutils.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.srv.Handle("/x/file.bin", tt.resp)
			eng := f.open(t)
			url := f.srv.URL("x/file.bin")

			outcome, err := eng.Fetch(context.Background(), url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, outcome)

			_, ok := eng.LastModifiedOf(url)
			assert.False(t, ok)
			assert.FileExists(t, f.opts.IndexPath)
		})
	}
}

func TestFetch_FailedStaleDownloadDropsEntry(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "old"})
	eng := f.open(t)
	url := f.srv.URL("file.txt")

	_, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)

	f.srv.Handle("/file.txt", testutil.Response{LastModified: date2024, Body: "ne", ExplicitLength: true, ContentLength: 3})
	_, err = eng.Fetch(context.Background(), url)
	require.ErrorIs(t, err, errutils.ErrTruncatedBody)

	_, ok := eng.LastModifiedOf(url)
	assert.False(t, ok)
	assert.NoFileExists(t, f.objectPath("/file.txt"))

	// the next fetch starts over as a fresh download
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date2024, Body: "new"})
	outcome, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
}

func TestFetch_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})

	ctrl := gomock.NewController(t)
	store := mock_objectstore.NewMockStore(ctrl)
	store.EXPECT().Write(gomock.Any(), []byte("hello")).DoAndReturn(
		func(parts urlpath.Parts, _ []byte) error {
			assert.Equal(t, "file.txt", parts.Filename)
			return errutils.Wrap(errutils.ErrStorage, "disk full")
		}).Times(1)
	store.EXPECT().Path(gomock.Any()).Return("/nowhere").AnyTimes()

	f.opts.Store = store
	eng := f.open(t)
	url := f.srv.URL("file.txt")

	_, err := eng.Fetch(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrStorage)

	_, ok := eng.LastModifiedOf(url)
	assert.False(t, ok)

	saved, err := index.NewFileStore(f.opts.IndexPath)
	require.NoError(t, err)
	idx, err := saved.Load()
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
}

func TestFetch_StaleRemoveFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date2024, Body: "new"})

	ctrl := gomock.NewController(t)
	store := mock_objectstore.NewMockStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Remove(gomock.Any()).Return(errutils.Wrap(errutils.ErrStorage, "permission denied")),
		store.EXPECT().Write(gomock.Any(), []byte("new")).Return(nil),
	)
	store.EXPECT().Path(gomock.Any()).Return("/nowhere").AnyTimes()

	idxStore, err := index.NewFileStore(f.opts.IndexPath)
	require.NoError(t, err)
	seed := index.New()
	url := f.srv.URL("file.txt")
	seed.Put(url, millis1994)
	require.NoError(t, idxStore.Save(seed))

	f.opts.Store = store
	eng := f.open(t)

	outcome, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Replaced, outcome)
}

type failingIndexStore struct {
	index.Store
}

func (failingIndexStore) Save(*index.Index) error {
	return errutils.Wrap(errutils.ErrStorage, "read-only filesystem")
}

func TestFetch_SaveFailureIsJoined(t *testing.T) {
	f := newFixture(t)
	inner, err := index.NewFileStore(f.opts.IndexPath)
	require.NoError(t, err)
	f.opts.IndexStore = failingIndexStore{Store: inner}
	eng := f.open(t)

	_, err = eng.Fetch(context.Background(), "http://")
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrMalformedURL)
	assert.ErrorIs(t, err, errutils.ErrStorage)
}

func TestFetch_RejectsBadURLs(t *testing.T) {
	f := newFixture(t)
	eng := f.open(t)

	_, err := eng.Fetch(context.Background(), "http://example.com")
	assert.ErrorIs(t, err, errutils.ErrMalformedURL)

	_, err = eng.Fetch(context.Background(), "https://example.com/secure.txt")
	assert.ErrorIs(t, err, errutils.ErrUnsupportedScheme)

	assert.Empty(t, f.srv.Requests())
}

func TestFetch_ConnectFailure(t *testing.T) {
	f := newFixture(t)
	addr := f.srv.Addr()
	f.srv.Close()
	eng := f.open(t)

	_, err := eng.Fetch(context.Background(), "http://"+addr+"/file.txt")
	assert.ErrorIs(t, err, errutils.ErrTransport)
}

func TestFetch_IgnoreURLPort(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})

	_, portText, _ := strings.Cut(f.srv.Addr(), ":")
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)
	f.opts.IgnoreURLPort = true
	f.opts.DefaultPort = port
	eng := f.open(t)

	// port 1 in the URL is ignored
	outcome, err := eng.Fetch(context.Background(), "http://127.0.0.1:1/file.txt")
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)

	reqs := f.srv.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0], "Host: 127.0.0.1:"+portText+"\r\n")
}

func TestFetch_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/slow.bin", testutil.Response{LastModified: date1994, Body: "never sent", HoldBody: true})
	f.opts.ReadTimeout = 10 * time.Second
	eng := f.open(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := eng.Fetch(ctx, f.srv.URL("slow.bin"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := eng.LastModifiedOf(f.srv.URL("slow.bin"))
	assert.False(t, ok)
}

func TestFetch_Hooks(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})

	marker := filepath.Join(t.TempDir(), "marker")
	manager := hooks.NewHookManager()
	require.NoError(t, manager.AddHook(hooks.Hook{Type: hooks.Downloaded, Content: `
		os := import("os")
		err := ""
		data := os.read_file(objectPath)
		if is_error(data) || string(data) != "hello" {
			err = "object not stored before hook"
		} else {
			f := os.create(marker)
			f.write_string(url)
			f.close()
		}
	`}))
	require.NoError(t, manager.AddHook(hooks.Hook{Type: hooks.Skipped, Content: `err := "skipped " + outcome`}))

	f.opts.Hooks = &varsHookManager{HookManager: manager, vars: map[string]interface{}{"marker": marker}}
	eng := f.open(t)
	url := f.srv.URL("file.txt")

	outcome, err := eng.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	assert.Equal(t, url, testutil.MustReadFile(t, marker))

	outcome, err = eng.Fetch(context.Background(), url)
	assert.Equal(t, Skipped, outcome)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrHookExecution)
	assert.Contains(t, err.Error(), "skipped skipped")
}

// varsHookManager injects extra script variables.
type varsHookManager struct {
	hooks.HookManager
	vars map[string]interface{}
}

func (m *varsHookManager) Execute(hookType hooks.HookType, ctx hooks.HookContext) error {
	ctx.Vars = m.vars
	return m.HookManager.Execute(hookType, ctx)
}

func TestEngine_PersistsAcrossOpen(t *testing.T) {
	for _, backend := range []string{index.BackendFile, index.BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t)
			f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})
			f.opts.IndexBackend = backend
			f.opts.IndexPath = ""

			eng, err := Open(f.opts)
			require.NoError(t, err)
			url := f.srv.URL("file.txt")
			_, err = eng.Fetch(context.Background(), url)
			require.NoError(t, err)
			assert.Equal(t, DefaultIndexPath(f.root, backend), eng.IndexLocation())
			require.NoError(t, eng.Close())

			reopened := f.open(t)
			millis, ok := reopened.LastModifiedOf(url)
			require.True(t, ok)
			assert.Equal(t, millis1994, millis)

			outcome, err := reopened.Fetch(context.Background(), url)
			require.NoError(t, err)
			assert.Equal(t, Skipped, outcome)
		})
	}
}

func TestEngine_CorruptIndexRecovered(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.opts.IndexPath, []byte("not an index"), 0o644))
	f.srv.Handle("/file.txt", testutil.Response{LastModified: date1994, Body: "hello"})

	eng := f.open(t)
	assert.Empty(t, eng.Entries())

	outcome, err := eng.Fetch(context.Background(), f.srv.URL("file.txt"))
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
}

func TestEngine_ForgetAndEntries(t *testing.T) {
	f := newFixture(t)
	f.srv.Handle("/b.txt", testutil.Response{LastModified: date2024, Body: "b"})
	f.srv.Handle("/a.txt", testutil.Response{LastModified: date1994, Body: "a"})
	eng := f.open(t)

	for _, p := range []string{"b.txt", "a.txt"} {
		_, err := eng.Fetch(context.Background(), f.srv.URL(p))
		require.NoError(t, err)
	}

	assert.Equal(t, []Entry{
		{URL: f.srv.URL("a.txt"), LastModified: millis1994},
		{URL: f.srv.URL("b.txt"), LastModified: millis2024},
	}, eng.Entries())

	require.NoError(t, eng.Forget(f.srv.URL("a.txt")))
	assert.NoFileExists(t, f.objectPath("/a.txt"))
	assert.Len(t, eng.Entries(), 1)

	err := eng.Forget(f.srv.URL("a.txt"))
	assert.ErrorIs(t, err, errutils.ErrNotCached)

	path, err := eng.ObjectPath(f.srv.URL("b.txt"))
	require.NoError(t, err)
	assert.Equal(t, f.objectPath("/b.txt"), path)
}

func TestEngine_Closed(t *testing.T) {
	f := newFixture(t)
	eng, err := Open(f.opts)
	require.NoError(t, err)
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	_, err = eng.Fetch(context.Background(), f.srv.URL("x"))
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, eng.Forget("http://a/b"), ErrClosed)
}

func TestOutcomeAndStateNames(t *testing.T) {
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "downloaded", Downloaded.String())
	assert.Equal(t, "replaced", Replaced.String())
	assert.Equal(t, "none", Outcome(0).String())

	assert.Equal(t, "HEADER_PARSED", StateHeaderParsed.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
