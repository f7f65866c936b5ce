package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// ErrFetchFailed is returned when at least one URL could not be fetched.
var ErrFetchFailed = errors.New("fetch failed")

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Fetch URLs into the cache",
		Long: `Fetch each URL in turn. An object is only downloaded when it is not cached
yet or when the server reports a different Last-Modified than the cached one.

Prints one line per URL: downloaded, replaced or skipped, followed by the URL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args, failFast)
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first URL that fails")

	return cmd
}

func runFetch(cmd *cobra.Command, urls []string, failFast bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	out := cmd.OutOrStdout()
	failed := 0
	for _, u := range urls {
		outcome, err := engine.Fetch(cmd.Context(), u)
		if outcome != 0 {
			_, _ = fmt.Fprintf(out, "%s\t%s\n", outcome, u)
		}
		if err == nil {
			continue
		}

		failed++
		if errors.Is(err, errutils.ErrHookExecution) {
			logger.Error("Hook failed", logger.Fields{"url": u, "error": err.Error()})
		} else {
			logger.Error("Fetch failed", logger.Fields{"url": u, "error": err.Error()})
		}
		if failFast || cmd.Context().Err() != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d urls", ErrFetchFailed, failed, len(urls))
	}
	return nil
}
