package hooks

// HookType names the fetch outcome a hook runs after.
type HookType string

// Supported hook types, one per fetch outcome.
const (
	Downloaded HookType = "downloaded"
	Replaced   HookType = "replaced"
	Skipped    HookType = "skipped"
)

// AllHookTypes lists the hook types in a stable order.
var AllHookTypes = []HookType{Downloaded, Replaced, Skipped}

// Hook represents a hook script with its type and content.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext contains information passed to hooks.
type HookContext struct {
	URL          string
	ObjectPath   string
	LastModified int64 // epoch milliseconds
	Outcome      string
	Vars         map[string]interface{}
}

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the specified hook type with the given context
	Execute(hookType HookType, ctx HookContext) error

	// AddHook adds a new hook
	AddHook(hook Hook) error

	// RemoveHook removes a hook of the specified type
	RemoveHook(hookType HookType) error

	// HasHook checks if a hook of the specified type exists
	HasHook(hookType HookType) bool
}
