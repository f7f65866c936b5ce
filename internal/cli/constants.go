package cli

// Default values for CLI output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// MaxURLLength is the widest URL shown in the index listing before truncation.
	MaxURLLength = 80
)
