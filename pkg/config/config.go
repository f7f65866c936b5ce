// Package config provides configuration management for urlcache.
// It handles loading, validating and saving the YAML settings file and turns
// those settings into fetch engine options.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/fetch"
	"github.com/glorpus-work/urlcache/pkg/fsutil"
	"github.com/glorpus-work/urlcache/pkg/httpwire"
	"github.com/glorpus-work/urlcache/pkg/index"
	"github.com/glorpus-work/urlcache/pkg/transport"
	"github.com/glorpus-work/urlcache/pkg/urlpath"
)

// Config represents the application configuration.
type Config struct {
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// Storage settings
	CacheRoot    string `yaml:"cache_root"`
	IndexBackend string `yaml:"index_backend"` // file, leveldb
	// IndexPath defaults to a sibling of CacheRoot when empty.
	IndexPath string `yaml:"index_path,omitempty"`

	// Network settings
	DefaultPort int `yaml:"default_port"`
	// HonorURLPort dials the port named in the URL instead of DefaultPort.
	// Unset means true.
	HonorURLPort *bool         `yaml:"honor_url_port,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`

	// Response parsing
	HeaderBoundary string `yaml:"header_boundary"` // crlf, legacy
	MaxHeaderBytes int    `yaml:"max_header_bytes"`

	// HooksDir holds <outcome>.tengo scripts run after each fetch.
	HooksDir string `yaml:"hooks_dir,omitempty"`

	// Output settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// Default configuration values.
const (
	DefaultIndexBackend   = index.BackendFile
	DefaultHeaderBoundary = "crlf"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2

	configFileName = "config.yaml"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	cacheRoot, err := fsutil.GetCacheDir()
	if err != nil {
		// Fall back to the temp dir if the user cache dir is unknown
		cacheRoot = filepath.Join(os.TempDir(), fsutil.AppName)
	}

	hooksDir := ""
	if configDir, err := fsutil.GetConfigDir(); err == nil {
		hooksDir = filepath.Join(configDir, "hooks")
	}

	return &Config{
		Settings: Settings{
			CacheRoot:      filepath.Join(cacheRoot, "objects"),
			IndexBackend:   DefaultIndexBackend,
			DefaultPort:    urlpath.DefaultPort,
			DialTimeout:    transport.DefaultDialTimeout,
			ReadTimeout:    transport.DefaultReadTimeout,
			HeaderBoundary: DefaultHeaderBoundary,
			MaxHeaderBytes: httpwire.DefaultMaxHeaderBytes,
			HooksDir:       hooksDir,
			LogLevel:       DefaultLogLevel,
			LogFormat:      DefaultLogFormat,
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errutils.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errutils.Wrap(errutils.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errutils.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errutils.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigValidation, err.Error())
	}

	return &config, nil
}

// SaveConfig writes the configuration to path through a temporary file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errutils.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errutils.Wrap(errutils.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errutils.Wrap(errutils.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errutils.Wrap(errutils.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errutils.Wrap(errutils.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errutils.Wrap(errutils.ErrConfigFileRename, err.Error())
	}

	if err := os.Chmod(absPath, fsutil.FileModeDefault); err != nil {
		return errutils.Wrap(errutils.ErrConfigFileChmod, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errutils.Wrap(errutils.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errutils.ErrConfigValidation
	}
	return validateSettings(c.Settings)
}

func validateSettings(s Settings) error {
	if s.CacheRoot == "" {
		return errutils.Wrap(errutils.ErrInvalidPath, "cache_root cannot be empty")
	}
	switch s.IndexBackend {
	case index.BackendFile, index.BackendLevelDB:
	default:
		return errutils.ErrInvalidIndexBackendWithDetails(s.IndexBackend)
	}
	if s.DefaultPort < 1 || s.DefaultPort > 65535 {
		return errutils.Wrapf(errutils.ErrInvalidPort, "default_port %d", s.DefaultPort)
	}
	if s.DialTimeout < 0 {
		return errutils.Wrap(errutils.ErrTimeoutNegative, "dial_timeout")
	}
	if s.ReadTimeout < 0 {
		return errutils.Wrap(errutils.ErrTimeoutNegative, "read_timeout")
	}
	if _, err := httpwire.ParseBoundary(s.HeaderBoundary); err != nil {
		return errutils.ErrInvalidBoundaryWithDetails(s.HeaderBoundary)
	}
	if s.MaxHeaderBytes <= 0 {
		return errutils.ErrHeaderLimitInvalid
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errutils.ErrInvalidLogLevelWithDetails(s.LogLevel)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.LogFormat] {
		return errutils.ErrInvalidLogFormatWithDetails(s.LogFormat)
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", errutils.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, configFileName), nil
}

// HonorsURLPort reports whether a port in the URL overrides DefaultPort.
func (c *Config) HonorsURLPort() bool {
	return c.Settings.HonorURLPort == nil || *c.Settings.HonorURLPort
}

// GetIndexPath returns the configured index location or the default one for
// the backend.
func (c *Config) GetIndexPath() string {
	if c.Settings.IndexPath != "" {
		return c.Settings.IndexPath
	}
	return fetch.DefaultIndexPath(c.Settings.CacheRoot, c.Settings.IndexBackend)
}

// FetchOptions turns the settings into engine options. Hooks are left for the
// caller to attach.
func (c *Config) FetchOptions() (fetch.Options, error) {
	boundary, err := httpwire.ParseBoundary(c.Settings.HeaderBoundary)
	if err != nil {
		return fetch.Options{}, err
	}
	return fetch.Options{
		CacheRoot:      c.Settings.CacheRoot,
		IndexBackend:   c.Settings.IndexBackend,
		IndexPath:      c.GetIndexPath(),
		DialTimeout:    c.Settings.DialTimeout,
		ReadTimeout:    c.Settings.ReadTimeout,
		DefaultPort:    c.Settings.DefaultPort,
		IgnoreURLPort:  !c.HonorsURLPort(),
		Boundary:       boundary,
		MaxHeaderBytes: c.Settings.MaxHeaderBytes,
	}, nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig().Settings

	if c.Settings.CacheRoot == "" {
		c.Settings.CacheRoot = defaults.CacheRoot
	}
	if c.Settings.IndexBackend == "" {
		c.Settings.IndexBackend = defaults.IndexBackend
	}
	if c.Settings.DefaultPort == 0 {
		c.Settings.DefaultPort = defaults.DefaultPort
	}
	if c.Settings.DialTimeout == 0 {
		c.Settings.DialTimeout = defaults.DialTimeout
	}
	if c.Settings.ReadTimeout == 0 {
		c.Settings.ReadTimeout = defaults.ReadTimeout
	}
	if c.Settings.HeaderBoundary == "" {
		c.Settings.HeaderBoundary = defaults.HeaderBoundary
	}
	if c.Settings.MaxHeaderBytes == 0 {
		c.Settings.MaxHeaderBytes = defaults.MaxHeaderBytes
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.LogLevel
	}
	if c.Settings.LogFormat == "" {
		c.Settings.LogFormat = defaults.LogFormat
	}
}
