package ui

// Config contains TUI-specific configuration.
type Config struct {
	// MaxWidth caps the reading column; 0 means fit the terminal.
	MaxWidth uint

	// HighlightColor overrides the spoken-word highlight.
	HighlightColor string `env:"READALOUD_HIGHLIGHT" envDefault:"170"`

	// EnableMouse turns on mouse wheel scrolling in the reading view.
	EnableMouse bool
}
