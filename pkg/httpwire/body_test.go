package httpwire

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody(t *testing.T) {
	body, err := ReadBody(strings.NewReader("hello, trailing"), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	body, err = ReadBody(iotest.OneByteReader(strings.NewReader("abcdef")), 6)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(body))
}

func TestReadBody_Empty(t *testing.T) {
	// nothing is read for a zero length
	body, err := ReadBody(iotest.ErrReader(errors.New("must not be read")), 0)
	require.NoError(t, err)
	assert.NotNil(t, body)
	assert.Empty(t, body)
}

func TestReadBody_Truncated(t *testing.T) {
	_, err := ReadBody(strings.NewReader("hel"), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrTruncatedBody)
	assert.Contains(t, err.Error(), "3 of 5")

	_, err = ReadBody(strings.NewReader(""), 1)
	assert.ErrorIs(t, err, errutils.ErrTruncatedBody)
}

func TestReadBody_TransportError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("he"), iotest.ErrReader(errors.New("reset")))
	_, err := ReadBody(r, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrTransport)
	assert.NotErrorIs(t, err, errutils.ErrTruncatedBody)
}

func TestReadBody_HugeDeclaredLength(t *testing.T) {
	_, err := ReadBody(strings.NewReader("hello"), math.MaxInt64)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrTruncatedBody)
	assert.Contains(t, err.Error(), "got 5 of")
}
