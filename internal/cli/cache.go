package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/urlcache/internal/logger"
	"github.com/glorpus-work/urlcache/pkg/archive"
	"github.com/glorpus-work/urlcache/pkg/cache"
	"github.com/glorpus-work/urlcache/pkg/config"
	"github.com/glorpus-work/urlcache/pkg/index"
)

// NewCacheCmd creates the cache command with subcommands
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the object cache",
		Long:  "Show information about, clean, export and import the object cache",
	}

	cmd.AddCommand(
		newCacheCleanCmd(),
		newCacheInfoCmd(),
		newCacheDirCmd(),
		newCacheExportCmd(),
		newCacheImportCmd(),
	)

	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	var indexOnly bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the cache",
		Long: `Remove cached objects and the index. With --index-only the objects are kept
but every URL is downloaded again on its next fetch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClean(cmd, indexOnly)
		},
	}

	cmd.Flags().BoolVar(&indexOnly, "index-only", false, "Remove only the index")

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		Long:  "Display the cache location, object count and sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheInfo(cmd)
		},
	}
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show cache directory path",
		Long:  "Display the path to the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheDir(cmd)
		},
	}
}

func newCacheExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export the cache to a .tar.gz file",
		Long:  "Write every cached object and the index to a gzip-compressed tarball",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheExport(cmd, args[0])
		},
	}
}

func newCacheImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a cache export",
		Long: `Extract the objects of an export into the cache and merge its index.
Entries from the export replace entries for the same URL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheImport(cmd, args[0])
		},
	}
}

func newCacheOperation(cfg *config.Config) *cache.CacheOperation {
	manager := cache.NewManager(cfg.Settings.CacheRoot, cfg.Settings.IndexBackend, cfg.GetIndexPath())
	return cache.NewCacheOperation(manager)
}

func runCacheClean(cmd *cobra.Command, indexOnly bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	msg, err := newCacheOperation(cfg).Clean(indexOnly)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runCacheInfo(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := newCacheOperation(cfg).GetInfo()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), info)
	return nil
}

func runCacheDir(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), newCacheOperation(cfg).GetDirectory())
	return nil
}

func runCacheExport(cmd *cobra.Command, file string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	idx, err := loadIndex(cfg)
	if err != nil {
		return err
	}

	if err := archive.NewManager().Export(cmd.Context(), cfg.Settings.CacheRoot, idx, file); err != nil {
		return err
	}

	logger.Success("Cache exported", logger.Fields{"file": file, "entries": idx.Len()})
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", entryCount(idx.Len()), file)
	return nil
}

func runCacheImport(cmd *cobra.Command, file string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	imported, err := archive.NewManager().Import(cmd.Context(), file, cfg.Settings.CacheRoot)
	if err != nil {
		return err
	}

	store, err := index.OpenStore(cfg.Settings.IndexBackend, cfg.GetIndexPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx, err := index.Load(store)
	if err != nil {
		return err
	}
	for _, u := range imported.URLs() {
		millis, _ := imported.Get(u)
		idx.Put(u, millis)
	}
	if err := store.Save(idx); err != nil {
		return err
	}

	logger.Success("Cache imported", logger.Fields{"file": file, "entries": imported.Len()})
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s from %s\n", entryCount(imported.Len()), file)
	return nil
}

func entryCount(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return humanize.Comma(int64(n)) + " entries"
}
