// Package httpwire frames HTTP/1.1 GET requests by hand and parses the
// response head read straight off a byte stream, without net/http.
package httpwire

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// Boundary selects the byte sequence that ends the response head.
type Boundary int

const (
	// BoundaryCRLF is the standard CR LF CR LF terminator.
	BoundaryCRLF Boundary = iota
	// BoundaryLegacy ends the head at the first LF CR LF, which also accepts
	// a final header line terminated by a bare LF.
	BoundaryLegacy
)

// DefaultMaxHeaderBytes caps how much is buffered while looking for the boundary.
const DefaultMaxHeaderBytes = 64 << 10

// ParseBoundary maps the configuration names "crlf" and "legacy".
func ParseBoundary(name string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "crlf":
		return BoundaryCRLF, nil
	case "legacy":
		return BoundaryLegacy, nil
	default:
		return BoundaryCRLF, errutils.ErrInvalidBoundaryWithDetails(name)
	}
}

func (b Boundary) String() string {
	if b == BoundaryLegacy {
		return "legacy"
	}
	return "crlf"
}

func (b Boundary) bytes() []byte {
	if b == BoundaryLegacy {
		return []byte("\n\r\n")
	}
	return []byte("\r\n\r\n")
}

// ResponseHeader is what the fetch engine needs from a response head.
type ResponseHeader struct {
	Proto         string
	StatusCode    int
	Reason        string
	LastModified  int64 // epoch milliseconds
	ContentLength int64
	Fields        map[string]string // canonical lower-case names
}

// Get returns a header field value by case-insensitive name.
func (h *ResponseHeader) Get(name string) (string, bool) {
	v, ok := h.Fields[strings.ToLower(name)]
	return v, ok
}

// HeaderReader consumes a response head from a buffered stream.
type HeaderReader struct {
	boundary []byte
	maxBytes int
}

// NewHeaderReader creates a reader for the given boundary. A maxBytes of zero
// or less means DefaultMaxHeaderBytes.
func NewHeaderReader(boundary Boundary, maxBytes int) *HeaderReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxHeaderBytes
	}
	return &HeaderReader{boundary: boundary.bytes(), maxBytes: maxBytes}
}

// ReadHeader reads from r up to and including the boundary and parses the
// status line, Last-Modified and Content-Length. Bytes after the boundary stay
// buffered in r for the body read.
func (hr *HeaderReader) ReadHeader(r *bufio.Reader) (*ResponseHeader, error) {
	raw, err := hr.scan(r)
	if err != nil {
		return nil, err
	}
	return parseHead(raw)
}

// scan accumulates whole lines until the buffer ends with the boundary. Both
// boundaries end in LF, so checking after each line finds the first match.
func (hr *HeaderReader) scan(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := r.ReadSlice('\n')
		buf.Write(chunk)

		if buf.Len() > hr.maxBytes {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", errutils.ErrMalformedResponse, hr.maxBytes)
		}
		if err == nil && bytes.HasSuffix(buf.Bytes(), hr.boundary) {
			return buf.Bytes(), nil
		}

		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: stream closed before end of header (%d bytes read)", errutils.ErrMalformedResponse, buf.Len())
		default:
			return nil, errutils.Wrap(errutils.ErrTransport, err.Error())
		}
	}
}

func parseHead(raw []byte) (*ResponseHeader, error) {
	lines := strings.Split(string(raw), "\n")

	h := &ResponseHeader{Fields: make(map[string]string)}
	if err := parseStatusLine(strings.TrimRight(lines[0], "\r"), h); err != nil {
		return nil, err
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad header line %q", errutils.ErrMalformedResponse, line)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := h.Fields[key]; !dup {
			h.Fields[key] = strings.TrimSpace(value)
		}
	}

	lastModified, ok := h.Get("Last-Modified")
	if !ok {
		return nil, fmt.Errorf("%w: missing Last-Modified", errutils.ErrMalformedResponse)
	}
	contentLength, ok := h.Get("Content-Length")
	if !ok {
		return nil, fmt.Errorf("%w: missing Content-Length", errutils.ErrMalformedResponse)
	}

	millis, err := ParseDate(lastModified)
	if err != nil {
		return nil, err
	}
	h.LastModified = millis

	n, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || !isDigits(contentLength) {
		return nil, fmt.Errorf("%w: bad Content-Length %q", errutils.ErrMalformedResponse, contentLength)
	}
	h.ContentLength = n

	return h, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseStatusLine handles "HTTP/1.1 200 OK".
func parseStatusLine(line string, h *ResponseHeader) error {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return fmt.Errorf("%w: bad status line %q", errutils.ErrMalformedResponse, line)
	}
	codeText, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeText)
	if err != nil || len(codeText) != 3 {
		return fmt.Errorf("%w: bad status code in %q", errutils.ErrMalformedResponse, line)
	}
	h.Proto = proto
	h.StatusCode = code
	h.Reason = reason
	return nil
}
