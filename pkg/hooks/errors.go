package hooks

import (
	"errors"
	"fmt"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// Common hook errors. Execution failures wrap errutils.ErrHookExecution.
var (
	// ErrHookTypeEmpty is returned when a hook type is empty.
	ErrHookTypeEmpty = errors.New("hook type cannot be empty")

	// ErrHookScript is returned when a script reports failure through its err variable.
	ErrHookScript = errors.New("hook script error")
)

// ErrUnsupportedHookType is returned when a hook is registered for an unknown type.
func ErrUnsupportedHookType(hookType HookType) error {
	return fmt.Errorf("%w: unsupported hook type: %s", errutils.ErrHookExecution, hookType)
}
