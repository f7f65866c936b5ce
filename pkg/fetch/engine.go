// Package fetch implements the conditional fetch: request a URL, compare the
// server's Last-Modified with the cache index, and download the body only
// when the stored copy is missing or stale.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/hooks"
	"github.com/glorpus-work/urlcache/pkg/httpwire"
	"github.com/glorpus-work/urlcache/pkg/index"
	"github.com/glorpus-work/urlcache/pkg/objectstore"
	"github.com/glorpus-work/urlcache/pkg/transport"
	"github.com/glorpus-work/urlcache/pkg/urlpath"
)

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("fetch engine is closed")

// Options configures an Engine. Only CacheRoot is required.
type Options struct {
	// CacheRoot is the directory objects are stored under.
	CacheRoot string

	// IndexBackend is index.BackendFile (default) or index.BackendLevelDB.
	IndexBackend string
	// IndexPath defaults to a sibling of CacheRoot: <root>.index.json for the
	// file backend, <root>.index.ldb for LevelDB.
	IndexPath string

	Dialer      transport.Dialer
	DialTimeout time.Duration
	ReadTimeout time.Duration

	// DefaultPort is dialed when the URL has no port (80 when zero).
	DefaultPort int
	// IgnoreURLPort dials DefaultPort even when the URL names a port.
	IgnoreURLPort bool

	Boundary       httpwire.Boundary
	MaxHeaderBytes int

	// Store and IndexStore replace the disk object store and the index
	// backend named by IndexBackend.
	Store      objectstore.Store
	IndexStore index.Store

	// Hooks run after the index is saved. Nil disables hooks.
	Hooks hooks.HookManager
}

// Entry is one index record.
type Entry struct {
	URL          string
	LastModified int64
}

// Engine owns the cache index for the lifetime of a process and serializes
// fetches against it.
type Engine struct {
	opts    Options
	store   objectstore.Store
	idxs    index.Store
	idx     *index.Index
	headers *httpwire.HeaderReader

	mu     sync.Mutex
	closed bool
}

// Open loads the index and prepares the object store.
func Open(opts Options) (*Engine, error) {
	if opts.CacheRoot == "" && opts.Store == nil {
		return nil, errutils.Wrap(errutils.ErrStorage, "cache root cannot be empty")
	}
	if opts.DefaultPort == 0 {
		opts.DefaultPort = urlpath.DefaultPort
	}
	if opts.IndexBackend == "" {
		opts.IndexBackend = index.BackendFile
	}
	if opts.IndexPath == "" {
		opts.IndexPath = DefaultIndexPath(opts.CacheRoot, opts.IndexBackend)
	}

	store := opts.Store
	if store == nil {
		ds, err := objectstore.NewDiskStore(opts.CacheRoot)
		if err != nil {
			return nil, err
		}
		store = ds
	}

	idxs := opts.IndexStore
	if idxs == nil {
		s, err := index.OpenStore(opts.IndexBackend, opts.IndexPath)
		if err != nil {
			return nil, err
		}
		idxs = s
	}

	idx, err := index.Load(idxs)
	if err != nil {
		_ = idxs.Close()
		return nil, err
	}

	if opts.Boundary == httpwire.BoundaryLegacy {
		logger.Warn("Using legacy header boundary LF CR LF", logger.Fields{"boundary": opts.Boundary.String()})
	}
	logger.Debug("Fetch engine opened", logger.Fields{
		"cache_root": opts.CacheRoot,
		"index":      idxs.Location(),
		"entries":    idx.Len(),
		"boundary":   opts.Boundary.String(),
	})

	return &Engine{
		opts:    opts,
		store:   store,
		idxs:    idxs,
		idx:     idx,
		headers: httpwire.NewHeaderReader(opts.Boundary, opts.MaxHeaderBytes),
	}, nil
}

// DefaultIndexPath is where the index lives when no path is configured.
func DefaultIndexPath(cacheRoot, backend string) string {
	if backend == index.BackendLevelDB {
		return cacheRoot + ".index.ldb"
	}
	return cacheRoot + ".index.json"
}

// Fetch brings the object for rawURL up to date. The index is saved before
// Fetch returns, whether or not the fetch succeeded; a save failure is joined
// to the fetch error. A hook failure is returned with the outcome of the
// otherwise successful fetch.
func (e *Engine) Fetch(ctx context.Context, rawURL string) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	run := &fetchRun{url: rawURL, state: StateStart}
	outcome, parts, err := e.fetch(ctx, run)

	if serr := e.idxs.Save(e.idx); serr != nil {
		err = errors.Join(err, serr)
	} else {
		run.transition(StatePersisted)
	}
	if err != nil {
		logger.Debug("Fetch failed", logger.Fields{"url": rawURL, "state": run.state.String(), "error": err.Error()})
		return 0, err
	}
	run.transition(StateDone)

	logger.Info("Fetch finished", logger.Fields{"url": rawURL, "outcome": outcome.String()})

	if herr := e.runHook(outcome, rawURL, parts); herr != nil {
		return outcome, herr
	}
	return outcome, nil
}

func (e *Engine) fetch(ctx context.Context, run *fetchRun) (Outcome, urlpath.Parts, error) {
	parts, err := urlpath.Parse(run.url)
	if err != nil {
		return 0, parts, err
	}
	if parts.Scheme != "http" {
		return 0, parts, fmt.Errorf("%w: %s", errutils.ErrUnsupportedScheme, parts.Scheme)
	}

	honorPort := !e.opts.IgnoreURLPort
	stream, err := transport.Open(ctx, e.opts.Dialer, parts.Address(e.opts.DefaultPort, honorPort), transport.Options{
		DialTimeout: e.opts.DialTimeout,
		ReadTimeout: e.opts.ReadTimeout,
	})
	if err != nil {
		return 0, parts, err
	}
	defer stream.Close()

	req := httpwire.BuildRequest(parts.RequestTarget(), parts.HostHeader(e.opts.DefaultPort, honorPort))
	if err := stream.Send(req); err != nil {
		return 0, parts, err
	}
	run.transition(StateRequestSent)

	header, err := e.headers.ReadHeader(stream.Reader())
	if err != nil {
		return 0, parts, ctxErr(ctx, err)
	}
	if header.StatusCode != 200 {
		return 0, parts, errutils.ErrUnexpectedStatusWithCode(header.StatusCode, header.Reason)
	}
	run.transition(StateHeaderParsed)

	cached, known := e.idx.Get(run.url)
	switch {
	case !known:
		run.transition(StateFreshDownload)
		e.idx.Put(run.url, header.LastModified)
		if err := e.download(ctx, stream, parts, header.ContentLength); err != nil {
			e.idx.Delete(run.url)
			return 0, parts, err
		}
		return Downloaded, parts, nil

	case cached != header.LastModified:
		run.transition(StateStaleDownload)
		e.idx.Put(run.url, header.LastModified)
		if err := e.store.Remove(parts); err != nil {
			logger.Warn("Could not remove stale object", logger.Fields{"path": e.store.Path(parts), "error": err.Error()})
		}
		if err := e.download(ctx, stream, parts, header.ContentLength); err != nil {
			e.idx.Delete(run.url)
			return 0, parts, err
		}
		return Replaced, parts, nil

	default:
		run.transition(StateSkip)
		return Skipped, parts, nil
	}
}

func (e *Engine) download(ctx context.Context, stream *transport.Stream, parts urlpath.Parts, n int64) error {
	body, err := httpwire.ReadBody(stream.Reader(), n)
	if err != nil {
		return ctxErr(ctx, err)
	}
	logger.DebugfWithFields(logger.Fields{"bytes": len(body)}, "Read body of %s", parts.RequestTarget())
	return e.store.Write(parts, body)
}

func (e *Engine) runHook(outcome Outcome, rawURL string, parts urlpath.Parts) error {
	if e.opts.Hooks == nil {
		return nil
	}
	return e.opts.Hooks.Execute(hooks.HookType(outcome.String()), hooks.HookContext{
		URL:          rawURL,
		ObjectPath:   e.store.Path(parts),
		LastModified: e.idx.Entries[rawURL],
		Outcome:      outcome.String(),
	})
}

// LastModifiedOf returns the cached Last-Modified of rawURL in epoch millis.
func (e *Engine) LastModifiedOf(rawURL string) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx.Get(rawURL)
}

// Forget removes the stored object and the index entry for rawURL.
func (e *Engine) Forget(rawURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if _, ok := e.idx.Get(rawURL); !ok {
		return errutils.ErrNotCachedWithURL(rawURL)
	}

	parts, err := urlpath.Parse(rawURL)
	if err != nil {
		return err
	}
	if err := e.store.Remove(parts); err != nil {
		return err
	}
	e.idx.Delete(rawURL)
	return e.idxs.Save(e.idx)
}

// Entries returns the index sorted by URL.
func (e *Engine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	urls := e.idx.URLs()
	entries := make([]Entry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, Entry{URL: u, LastModified: e.idx.Entries[u]})
	}
	return entries
}

// ObjectPath is where the object for rawURL is, or would be, stored.
func (e *Engine) ObjectPath(rawURL string) (string, error) {
	parts, err := urlpath.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return e.store.Path(parts), nil
}

// IndexLocation is the file or directory backing the index.
func (e *Engine) IndexLocation() string {
	return e.idxs.Location()
}

// Close releases the index backend. The index was already saved by the
// last Fetch.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.idxs.Close()
}

// ctxErr reports cancellation instead of the read error it caused.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", errutils.ErrTransport, cerr)
	}
	return err
}

type fetchRun struct {
	url   string
	state State
}

func (r *fetchRun) transition(to State) {
	logger.Debug("Fetch state", logger.Fields{"url": r.url, "from": r.state.String(), "to": to.String()})
	r.state = to
}
