package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// HookFileExtension is the extension of hook scripts.
const HookFileExtension = ".tengo"

// LoadHooksFromDir registers <dir>/<hook-type>.tengo for every known hook
// type. A missing directory loads nothing; files for unknown types are ignored.
func LoadHooksFromDir(manager HookManager, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errutils.Wrapf(err, "failed to read hooks directory %s", dir)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != HookFileExtension {
			continue
		}

		hookType := HookType(strings.TrimSuffix(entry.Name(), HookFileExtension))
		if !isKnownType(hookType) {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(hookPath)
		if err != nil {
			return loaded, errutils.Wrapf(err, "error reading hook file %s", hookPath)
		}

		if err := manager.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return loaded, errutils.Wrapf(err, "error adding hook %s", hookType)
		}
		loaded++
	}

	return loaded, nil
}

// HookTemplate generates a starter script for a hook type.
func HookTemplate(hookType HookType) string {
	switch hookType {
	case Downloaded:
		return `// downloaded hook
// Runs after a URL was fetched for the first time and the index was saved.
// Available variables:
// - url: string - the fetched URL
// - objectPath: string - where the body was stored
// - lastModified: int - server Last-Modified in epoch milliseconds
// - outcome: string - "downloaded"
//
// Set err to a non-empty string to report a failure.

fmt := import("fmt")
fmt.println("downloaded ", url, " -> ", objectPath)
`

	case Replaced:
		return `// replaced hook
// Runs after a stale object was replaced by a newer one.
// Available variables: same as the downloaded hook, outcome is "replaced".

fmt := import("fmt")
fmt.println("replaced ", url)
`

	case Skipped:
		return `// skipped hook
// Runs when the cached object is already current.
// Available variables: same as the downloaded hook, outcome is "skipped".
`

	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
