package httpwire

import "strings"

// BuildRequest frames a minimal HTTP/1.1 GET. The server is asked to close
// the connection so the stream ends after the body.
func BuildRequest(target, host string) []byte {
	var b strings.Builder
	b.Grow(len(target) + len(host) + 48)
	b.WriteString("GET ")
	b.WriteString(target)
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(host)
	b.WriteString("\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}
