package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level string, format OutputFormat, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger(level, format)
	t.Cleanup(func() { logger = nil })

	fn()
	return buf.String()
}

func TestLogger_Text(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func()
		contains []string
		excludes []string
	}{
		{
			name:     "info",
			level:    "info",
			logFn:    func() { Info("fetch finished") },
			contains: []string{"fetch finished", "level=INFO"},
		},
		{
			name:     "debug shown at debug level",
			level:    "debug",
			logFn:    func() { Debug("state transition", Fields{"to": "HEADER_PARSED"}) },
			contains: []string{"state transition", "level=DEBUG", "to=HEADER_PARSED"},
		},
		{
			name:     "debug hidden at info level",
			level:    "info",
			logFn:    func() { Debug("state transition") },
			excludes: []string{"state transition"},
		},
		{
			name:     "warn with fields",
			level:    "warn",
			logFn:    func() { Warn("stale object not removed", Fields{"path": "/tmp/x", "attempt": 1}) },
			contains: []string{"stale object not removed", "level=WARN", "path=/tmp/x", "attempt=1"},
		},
		{
			name:     "info hidden at error level",
			level:    "error",
			logFn:    func() { Info("fetch finished"); Error("fetch failed") },
			contains: []string{"fetch failed", "level=ERROR"},
			excludes: []string{"fetch finished"},
		},
		{
			name:     "success",
			level:    "info",
			logFn:    func() { Success("cache cleaned") },
			contains: []string{"cache cleaned", "status=success"},
		},
		{
			name:     "formatted",
			level:    "info",
			logFn:    func() { Infof("fetched %d urls", 3) },
			contains: []string{"fetched 3 urls"},
		},
		{
			name:     "formatted debug with fields",
			level:    "debug",
			logFn:    func() { DebugfWithFields(Fields{"bytes": 5}, "read body of %s", "file.txt") },
			contains: []string{"read body of file.txt", "bytes=5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, tt.level, FormatText, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, notWant := range tt.excludes {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestLogger_JSON(t *testing.T) {
	out := captureOutput(t, "info", FormatJSON, func() {
		Info("fetch finished", Fields{"url": "http://example.com/a", "outcome": "downloaded", "bytes": 5})
	})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	assert.Equal(t, "fetch finished", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "http://example.com/a", rec["url"])
	assert.Equal(t, "downloaded", rec["outcome"])
	assert.Equal(t, float64(5), rec["bytes"])
}

func TestSetOutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger("debug", FormatText)
	t.Cleanup(func() { logger = nil })

	Debug("first")
	assert.Contains(t, buf.String(), "level=DEBUG")

	buf.Reset()
	SetOutputFormat(FormatJSON)
	Debug("second")
	// level survives the format switch
	assert.Contains(t, buf.String(), `"msg":"second"`)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestGetLogger_InitializesIfNil(t *testing.T) {
	logger = nil
	assert.NotPanics(t, func() {
		assert.NotNil(t, GetLogger())
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMergeFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []Fields
		expect map[string]interface{}
	}{
		{
			name:   "none",
			fields: nil,
			expect: map[string]interface{}{},
		},
		{
			name:   "multiple maps",
			fields: []Fields{{"url": "u"}, {"bytes": 5, "replaced": true}},
			expect: map[string]interface{}{"url": "u", "bytes": 5, "replaced": true},
		},
		{
			name:   "later wins",
			fields: []Fields{{"outcome": "skipped"}, {"outcome": "replaced"}},
			expect: map[string]interface{}{"outcome": "replaced"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := mergeFields(tt.fields...)
			result := make(map[string]interface{})
			for i := 0; i < len(attrs); i += 2 {
				result[attrs[i].(string)] = attrs[i+1]
			}
			assert.Equal(t, tt.expect, result)
		})
	}
}
