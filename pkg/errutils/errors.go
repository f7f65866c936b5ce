// Package errutils defines the error values shared across urlcache.
//
// Every failure a fetch can produce has its own sentinel so callers can tell
// them apart with errors.Is. Call sites add context with Wrap/Wrapf or
// fmt.Errorf("...: %w", ...) and never replace the sentinel.
package errutils

import (
	"fmt"
)

// Fetch errors.
var (
	// ErrMalformedURL is returned when a URL cannot be split into host, path and filename.
	ErrMalformedURL = fmt.Errorf("malformed url")

	// ErrUnsupportedScheme is returned for URLs the engine cannot speak (https).
	ErrUnsupportedScheme = fmt.Errorf("unsupported url scheme")

	// ErrTransport covers connect, read and write failures on the socket.
	ErrTransport = fmt.Errorf("transport failure")

	// ErrMalformedResponse is returned when the header terminator is never seen
	// or a required header field is missing or unparsable.
	ErrMalformedResponse = fmt.Errorf("malformed response")

	// ErrUnexpectedStatus is returned when the origin answers with anything but 200.
	ErrUnexpectedStatus = fmt.Errorf("unexpected response status")

	// ErrDateFormat is returned when a Last-Modified value is not a valid HTTP-date.
	ErrDateFormat = fmt.Errorf("invalid http date")

	// ErrTruncatedBody is returned when the stream ends before Content-Length bytes arrived.
	ErrTruncatedBody = fmt.Errorf("truncated response body")

	// ErrStorage covers filesystem failures while writing objects or the index.
	ErrStorage = fmt.Errorf("storage failure")

	// ErrCorruptCache is returned when a persisted index exists but cannot be decoded.
	ErrCorruptCache = fmt.Errorf("corrupt cache index")

	// ErrNotCached is returned when a URL has no entry in the index.
	ErrNotCached = fmt.Errorf("url not cached")

	// ErrHookExecution is returned when a post-fetch hook script fails.
	ErrHookExecution = fmt.Errorf("hook execution failed")
)

// Config errors.
var (
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrConfigFileChmod   = fmt.Errorf("failed to set config file permissions")
	ErrConfigMarshal     = fmt.Errorf("failed to marshal config to YAML")

	// ErrConfigFileExists is returned when init would overwrite an existing file.
	ErrConfigFileExists = fmt.Errorf("configuration file already exists (use --force to overwrite)")

	ErrUnknownConfigKey    = fmt.Errorf("unknown configuration key")
	ErrInvalidBoolValue    = fmt.Errorf("invalid boolean value")
	ErrInvalidLogLevel     = fmt.Errorf("invalid log level")
	ErrInvalidLogFormat    = fmt.Errorf("invalid log format")
	ErrInvalidIndexBackend = fmt.Errorf("invalid index backend")
	ErrInvalidBoundary     = fmt.Errorf("invalid header boundary")
	ErrInvalidPort         = fmt.Errorf("port must be between 1 and 65535")
	ErrTimeoutNegative     = fmt.Errorf("timeout cannot be negative")
	ErrHeaderLimitInvalid  = fmt.Errorf("max_header_bytes must be positive")

	// ErrInvalidPath is returned when a file or directory path is unusable.
	ErrInvalidPath = fmt.Errorf("invalid path")
)

// Wrap wraps an error with additional context.
// If the error is nil, Wrap returns nil.
//
// Example:
//
//	if err := store.Write(parts, body); err != nil {
//	    return errutils.Wrap(err, "failed to store object")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
// If the error is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ErrMalformedURLWithReason attaches the offending URL and the reason it was rejected.
func ErrMalformedURLWithReason(url, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformedURL, url, reason)
}

// ErrUnexpectedStatusWithCode reports the status line the origin sent.
func ErrUnexpectedStatusWithCode(code int, reason string) error {
	return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, code, reason)
}

// ErrNotCachedWithURL reports a lookup for a URL the index has never seen.
func ErrNotCachedWithURL(url string) error {
	return fmt.Errorf("%w: %s", ErrNotCached, url)
}

// ErrInvalidLogLevelWithDetails is a helper to create a wrapped error with the invalid level and valid options.
func ErrInvalidLogLevelWithDetails(level string) error {
	return fmt.Errorf("%w: '%s', must be one of: debug, info, warn, error", ErrInvalidLogLevel, level)
}

// ErrInvalidLogFormatWithDetails is a helper to create a wrapped error with the invalid format and valid options.
func ErrInvalidLogFormatWithDetails(format string) error {
	return fmt.Errorf("%w: '%s', must be one of: text, json", ErrInvalidLogFormat, format)
}

// ErrInvalidIndexBackendWithDetails reports an index backend that is not file or leveldb.
func ErrInvalidIndexBackendWithDetails(backend string) error {
	return fmt.Errorf("%w: '%s', must be one of: file, leveldb", ErrInvalidIndexBackend, backend)
}

// ErrInvalidBoundaryWithDetails reports a header boundary that is not crlf or legacy.
func ErrInvalidBoundaryWithDetails(boundary string) error {
	return fmt.Errorf("%w: '%s', must be one of: crlf, legacy", ErrInvalidBoundary, boundary)
}
