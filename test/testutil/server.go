package testutil

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/urlcache/internal/logger"
)

// Response is what OriginServer sends for one path.
type Response struct {
	// Status is the status line after the protocol, "200 OK" when empty.
	Status string
	// LastModified is the header value; omitted when empty.
	LastModified string
	// ContentLength replaces len(Body) in the header when ExplicitLength is set.
	ContentLength  int
	ExplicitLength bool
	// OmitLength drops the Content-Length header.
	OmitLength bool
	Body       string
	// Raw, when set, is written verbatim instead of a generated response.
	Raw string
	// HoldBody sends the head and then withholds the body until the client
	// closes the connection.
	HoldBody bool
}

func (r Response) head() string {
	status := r.Status
	if status == "" {
		status = "200 OK"
	}
	var b strings.Builder
	b.WriteString("HTTP/1.1 " + status + "\r\n")
	b.WriteString("Server: urlcache-test\r\n")
	if r.LastModified != "" {
		b.WriteString("Last-Modified: " + r.LastModified + "\r\n")
	}
	if !r.OmitLength {
		n := len(r.Body)
		if r.ExplicitLength {
			n = r.ContentLength
		}
		b.WriteString("Content-Length: " + strconv.Itoa(n) + "\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")
	return b.String()
}

// OriginServer is a raw TCP server that answers each GET with a canned
// response, so tests exercise the hand-written wire handling end to end.
type OriginServer struct {
	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	responses map[string]Response
	requests  []string
	conns     map[net.Conn]struct{}
}

// NewOriginServer starts a server on a random loopback port and stops it
// when the test ends.
func NewOriginServer(t *testing.T) *OriginServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	s := &OriginServer{
		ln:        ln,
		responses: make(map[string]Response),
		conns:     make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr is the host:port the server listens on.
func (s *OriginServer) Addr() string {
	return s.ln.Addr().String()
}

// URL returns an absolute http URL for path on this server.
func (s *OriginServer) URL(path string) string {
	return "http://" + s.Addr() + "/" + strings.TrimPrefix(path, "/")
}

// Handle sets the response for a request target such as "/a/b/file.txt".
func (s *OriginServer) Handle(target string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[target] = resp
}

// Requests returns the raw request heads received so far.
func (s *OriginServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *OriginServer) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *OriginServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.handle(conn)
		}()
	}
}

func (s *OriginServer) handle(conn net.Conn) {
	r := bufio.NewReader(conn)
	var head strings.Builder
	for {
		line, err := r.ReadString('\n')
		head.WriteString(line)
		if err != nil {
			return
		}
		if line == "\r\n" {
			break
		}
	}

	raw := head.String()
	requestLine, _, _ := strings.Cut(raw, "\r\n")
	parts := strings.Fields(requestLine)
	target := ""
	if len(parts) >= 2 {
		target = parts[1]
	}

	s.mu.Lock()
	s.requests = append(s.requests, raw)
	resp, ok := s.responses[target]
	s.mu.Unlock()

	logger.Debug("origin server request", logger.Fields{"target": target, "known": ok})

	if !ok {
		_, _ = conn.Write([]byte("HTTP/1.1 404 Not Found\r\nLast-Modified: Thu, 01 Jan 1970 00:00:00 GMT\r\nContent-Length: 0\r\n\r\n"))
		return
	}
	if resp.Raw != "" {
		_, _ = conn.Write([]byte(resp.Raw))
		return
	}

	if _, err := conn.Write([]byte(resp.head())); err != nil {
		return
	}
	if resp.HoldBody {
		// block until the client hangs up
		_, _ = r.ReadByte()
		return
	}
	_, _ = conn.Write([]byte(resp.Body))
}

// SetupTestConfig writes a config file whose cache root and index live in a
// temporary directory, and returns its path.
func SetupTestConfig(t *testing.T, settings map[string]interface{}) string {
	t.Helper()
	tempDir := t.TempDir()

	merged := map[string]interface{}{
		"cache_root":   filepath.Join(tempDir, "cache"),
		"index_path":   filepath.Join(tempDir, "index.json"),
		"read_timeout": "2s",
		"dial_timeout": "2s",
	}
	for k, v := range settings {
		merged[k] = v
	}

	data, err := yaml.Marshal(map[string]interface{}{"settings": merged})
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}

	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

// MustReadFile returns the content of path or fails the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}
