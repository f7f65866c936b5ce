package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/urlcache/pkg/errutils"
	"github.com/glorpus-work/urlcache/pkg/httpwire"
)

// NewLastModifiedCmd creates the last-modified command.
func NewLastModifiedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last-modified URL",
		Short: "Show the cached Last-Modified of a URL",
		Long:  "Print the Last-Modified recorded for URL as epoch milliseconds and as an HTTP date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLastModified(cmd, args[0])
		},
	}
}

func runLastModified(cmd *cobra.Command, url string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	millis, ok := engine.LastModifiedOf(url)
	if !ok {
		return errutils.ErrNotCachedWithURL(url)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", millis, httpwire.FormatDate(millis))
	return nil
}
