package internal

// Mode selects what Run does after the indexing pass.
type Mode string

// Run modes.
const (
	// ModeMCP serves the tool set over MCP stdio. The default.
	ModeMCP Mode = "mcp"
	// ModeServe runs the web boundary: HTTP API, SSE, file watcher.
	ModeServe Mode = "serve"
	// ModeInit runs the indexing pass and exits.
	ModeInit Mode = "init"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   Mode
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode selects the run mode.
func WithMode(mode Mode) Option {
	return func(a *application) {
		a.mode = mode
	}
}
