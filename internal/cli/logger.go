package cli

import (
	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/config"
)

// setupLogging initializes the global logger from the loaded configuration.
func setupLogging(cfg *config.Config) {
	format := logger.FormatText
	if cfg.Settings.LogFormat == string(logger.FormatJSON) {
		format = logger.FormatJSON
	}
	logger.InitLogger(cfg.Settings.LogLevel, format)
}
