package index

import (
	"testing"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_GetPutDelete(t *testing.T) {
	idx := New()
	assert.Equal(t, FormatVersion, idx.FormatVersion)
	assert.Zero(t, idx.Len())

	_, ok := idx.Get("http://example.com/a")
	assert.False(t, ok)

	idx.Put("http://example.com/a", 784887151000)
	millis, ok := idx.Get("http://example.com/a")
	require.True(t, ok)
	assert.Equal(t, int64(784887151000), millis)
	assert.False(t, idx.LastUpdate.IsZero())

	// put replaces
	idx.Put("http://example.com/a", 1)
	millis, _ = idx.Get("http://example.com/a")
	assert.Equal(t, int64(1), millis)
	assert.Equal(t, 1, idx.Len())

	assert.True(t, idx.Delete("http://example.com/a"))
	assert.False(t, idx.Delete("http://example.com/a"))
	assert.Zero(t, idx.Len())
}

func TestIndex_URLsSorted(t *testing.T) {
	idx := New()
	idx.Put("http://b.test/x", 2)
	idx.Put("http://a.test/y", 1)
	idx.Put("http://a.test/x", 3)

	assert.Equal(t, []string{"http://a.test/x", "http://a.test/y", "http://b.test/x"}, idx.URLs())
}

func TestIndex_Clone(t *testing.T) {
	idx := New()
	idx.Put("http://a.test/x", 1)

	c := idx.Clone()
	c.Put("http://a.test/y", 2)

	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 2, c.Len())
}

func TestIndex_PutOnZeroValue(t *testing.T) {
	var idx Index
	idx.Put("http://a.test/x", 5)
	millis, ok := idx.Get("http://a.test/x")
	assert.True(t, ok)
	assert.Equal(t, int64(5), millis)
}

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex([]byte(`{"format_version":"1.0","last_update":"2024-03-09T20:15:00Z","entries":{"http://a.test/x":42}}`))
	require.NoError(t, err)
	assert.Equal(t, "1.0", idx.FormatVersion)
	assert.Equal(t, map[string]int64{"http://a.test/x": 42}, idx.Entries)

	// minor versions within the major are readable
	idx, err = ParseIndex([]byte(`{"format_version":"1.3"}`))
	require.NoError(t, err)
	assert.NotNil(t, idx.Entries)
}

func TestParseIndex_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "definitely not json"},
		{"truncated", `{"format_version":"1.0","entries":{`},
		{"missing version", `{"entries":{}}`},
		{"bad version", `{"format_version":"one"}`},
		{"future major", `{"format_version":"2.0","entries":{}}`},
		{"wrong value type", `{"format_version":"1.0","entries":{"u":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIndex([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, errutils.ErrCorruptCache)
		})
	}
}
