package httpwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// ReadBody reads exactly n bytes. The buffer grows as bytes arrive, so a
// declared length larger than the body costs no memory up front. A stream
// that ends early is a truncated body; any other read failure is a
// transport error.
func ReadBody(r io.Reader, n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative body length %d", errutils.ErrMalformedResponse, n)
	}

	var body bytes.Buffer
	read, err := io.CopyN(&body, r, n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", errutils.ErrTruncatedBody, read, n)
		}
		return nil, errutils.Wrap(errutils.ErrTransport, err.Error())
	}
	return body.Bytes(), nil
}
