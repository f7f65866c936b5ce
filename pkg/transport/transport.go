// Package transport opens the raw TCP stream a single fetch runs over.
package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

const (
	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 10 * time.Second
	// DefaultReadTimeout bounds each individual read.
	DefaultReadTimeout = 30 * time.Second
)

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Stream. Zero values select the defaults.
type Options struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	return o
}

// Stream is one bidirectional connection to an origin server.
type Stream struct {
	conn   net.Conn
	reader *bufio.Reader
	stop   func() bool

	closeOnce sync.Once
	closeErr  error
}

// Open dials addr over TCP. Cancelling ctx after Open returns closes the
// connection, which unblocks any pending read or write.
func Open(ctx context.Context, dialer Dialer, addr string, opts Options) (*Stream, error) {
	opts = opts.withDefaults()
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, errutils.Wrapf(errutils.ErrTransport, "connect %s: %v", addr, err)
	}

	s := &Stream{conn: conn}
	s.reader = bufio.NewReader(&deadlineReader{conn: conn, timeout: opts.ReadTimeout})
	s.stop = context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	return s, nil
}

// Send writes the full request.
func (s *Stream) Send(req []byte) error {
	if _, err := s.conn.Write(req); err != nil {
		return errutils.Wrapf(errutils.ErrTransport, "send request: %v", err)
	}
	return nil
}

// Reader returns the buffered response stream.
func (s *Stream) Reader() *bufio.Reader {
	return s.reader
}

// RemoteAddr is the peer address, for logging.
func (s *Stream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		if err := s.conn.Close(); err != nil && !isClosedErr(err) {
			s.closeErr = errutils.Wrapf(errutils.ErrTransport, "close: %v", err)
		}
	})
	return s.closeErr
}

// deadlineReader refreshes the read deadline before every read so a stalled
// server fails the fetch instead of hanging it.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
