package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/httpwire"
)

// NewIndexCmd creates the index command with subcommands.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and edit the cache index",
		Long:  `Commands for listing cached URLs and forgetting them.`,
	}

	cmd.AddCommand(
		newIndexListCmd(),
		newIndexRemoveCmd(),
	)

	return cmd
}

func newIndexListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached URLs",
		Long:    "List every cached URL with its recorded Last-Modified",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexList(cmd)
		},
	}
}

func newIndexRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove URL...",
		Aliases: []string{"rm"},
		Short:   "Forget cached URLs",
		Long:    "Remove the stored object and the index entry of each URL",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexRemove(cmd, args)
		},
	}
}

func runIndexList(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	entries := engine.Entries()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No cached URLs")
		return nil
	}

	tabWriter := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "URL\tLAST MODIFIED\tMILLIS")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%d\n", truncate(e.URL, MaxURLLength), httpwire.FormatDate(e.LastModified), e.LastModified)
	}
	return tabWriter.Flush()
}

func runIndexRemove(cmd *cobra.Command, urls []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	for _, u := range urls {
		if err := engine.Forget(u); err != nil {
			return fmt.Errorf("failed to remove %s: %w", u, err)
		}
		logger.Success("Removed from cache", logger.Fields{"url": u})
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed\t%s\n", u)
	}
	return nil
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 4 {
		return s
	}
	return string(r[:n-3]) + "..."
}
