package cli

import (
	"fmt"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/config"
	"github.com/glorpus-work/urlcache/pkg/fetch"
	"github.com/glorpus-work/urlcache/pkg/hooks"
	"github.com/glorpus-work/urlcache/pkg/index"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
	LogFormat  *string
)

// loadConfig loads the configuration file named by --config, or the default
// one, and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with CLI flags if provided
	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if LogFormat != nil && *LogFormat != "" {
		cfg.Settings.LogFormat = *LogFormat
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	setupLogging(cfg)
	return cfg, nil
}

// openEngine opens the fetch engine described by cfg, with the hook scripts
// from its hooks directory attached.
func openEngine(cfg *config.Config) (*fetch.Engine, error) {
	opts, err := cfg.FetchOptions()
	if err != nil {
		return nil, err
	}

	if cfg.Settings.HooksDir != "" {
		manager := hooks.NewHookManager()
		n, err := hooks.LoadHooksFromDir(manager, cfg.Settings.HooksDir)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			opts.Hooks = manager
			logger.Debug("Loaded hooks", logger.Fields{"dir": cfg.Settings.HooksDir, "count": n})
		}
	}

	return fetch.Open(opts)
}

// loadIndex reads the configured index without opening an engine.
func loadIndex(cfg *config.Config) (*index.Index, error) {
	store, err := index.OpenStore(cfg.Settings.IndexBackend, cfg.GetIndexPath())
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	return index.Load(store)
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		// An empty path makes LoadConfig report a descriptive error
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err.Error()})
		return ""
	}
	return defaultPath
}
