// Package urlpath splits a fully-qualified URL into the host, directory path
// and filename used both for the request line and for the on-disk location
// of the stored object.
package urlpath

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// DefaultPort is the port dialed when the URL carries none.
const DefaultPort = 80

// Parts is the decomposed form of a URL.
//
// Path is either empty or a sequence of segments each followed by "/",
// e.g. "a/b/". Port is 0 when the URL did not name one.
type Parts struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	Filename string
}

// Parse splits rawURL on "/". Leading empty segments and a scheme token
// ("http:" or "https:") are skipped; the next segment is the host with any
// ":port" suffix split off; every following segment except the last joins
// the path; the last one is the filename.
func Parse(rawURL string) (Parts, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, "empty url")
	}

	segments := strings.Split(rawURL, "/")

	var parts Parts
	i := 0
	for i < len(segments) {
		seg := segments[i]
		if seg == "" {
			i++
			continue
		}
		if seg == "http:" || seg == "https:" {
			if parts.Scheme != "" {
				return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, "repeated scheme")
			}
			parts.Scheme = strings.TrimSuffix(seg, ":")
			i++
			continue
		}
		break
	}
	if parts.Scheme == "" {
		parts.Scheme = "http"
	}
	if i >= len(segments) {
		return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, "missing host")
	}

	host, port, err := splitHostPort(segments[i])
	if err == nil {
		err = checkSegment(host)
	}
	if err != nil {
		return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, err.Error())
	}
	parts.Host = host
	parts.Port = port
	i++

	if i >= len(segments) {
		return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, "no path segments after host")
	}

	rest := segments[i:]
	var path strings.Builder
	for _, seg := range rest[:len(rest)-1] {
		if err := checkSegment(seg); err != nil {
			return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, err.Error())
		}
		path.WriteString(seg)
		path.WriteByte('/')
	}
	parts.Path = path.String()

	parts.Filename = rest[len(rest)-1]
	if parts.Filename == "" {
		return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, "missing filename")
	}
	if err := checkSegment(parts.Filename); err != nil {
		return Parts{}, errutils.ErrMalformedURLWithReason(rawURL, err.Error())
	}

	return parts, nil
}

type segmentError string

func (e segmentError) Error() string { return string(e) }

func splitHostPort(seg string) (string, int, error) {
	host, portText, hasPort := strings.Cut(seg, ":")
	if host == "" {
		return "", 0, segmentError("missing host")
	}
	if !hasPort || portText == "" {
		return host, 0, nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, segmentError("invalid port " + strconv.Quote(portText))
	}
	return host, port, nil
}

// checkSegment rejects segments that would escape the host directory once
// joined into a filesystem path.
func checkSegment(seg string) error {
	switch seg {
	case "":
		return segmentError("empty path segment")
	case ".", "..":
		return segmentError("relative path segment " + strconv.Quote(seg))
	}
	if strings.ContainsRune(seg, '\\') || strings.ContainsRune(seg, 0) {
		return segmentError("invalid character in path segment")
	}
	return nil
}

// RequestTarget is the origin-form target sent on the request line.
func (p Parts) RequestTarget() string {
	return "/" + p.Path + p.Filename
}

// Address returns the host:port to dial. When honorPort is false, or the URL
// had no port, defaultPort is used.
func (p Parts) Address(defaultPort int, honorPort bool) string {
	port := defaultPort
	if honorPort && p.Port != 0 {
		port = p.Port
	}
	return p.Host + ":" + strconv.Itoa(port)
}

// HostHeader is the Host field value matching Address.
func (p Parts) HostHeader(defaultPort int, honorPort bool) string {
	if honorPort && p.Port != 0 && p.Port != DefaultPort {
		return p.Host + ":" + strconv.Itoa(p.Port)
	}
	if !honorPort && defaultPort != DefaultPort {
		return p.Host + ":" + strconv.Itoa(defaultPort)
	}
	return p.Host
}

// Dir is the object directory relative to a cache root: <host>/<path>.
func (p Parts) Dir() string {
	return filepath.Join(p.Host, filepath.FromSlash(p.Path))
}

// RelPath is the object location relative to a cache root: <host>/<path>/<filename>.
func (p Parts) RelPath() string {
	return filepath.Join(p.Dir(), p.Filename)
}
