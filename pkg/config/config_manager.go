package config

import (
	"os"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// InitConfigFile writes the default configuration to path. An existing file
// is only replaced when force is set.
func InitConfigFile(path string, force bool) (*Config, error) {
	if path == "" {
		return nil, errutils.ErrEmptyConfigPath
	}
	if _, err := os.Stat(path); err == nil && !force {
		return nil, errutils.Wrap(errutils.ErrConfigFileExists, path)
	}

	cfg := DefaultConfig()
	if err := cfg.SaveConfig(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateConfigFile loads path, sets key to value and saves it again.
func UpdateConfigFile(path, key, value string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetValue(key, value); err != nil {
		return nil, err
	}
	if err := cfg.SaveConfig(path); err != nil {
		return nil, err
	}
	return cfg, nil
}
