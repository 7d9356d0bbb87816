package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// logOutput receives the JSON log stream. The MCP server owns stdout,
	// so it logs to stderr.
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

func newApplication(opts []Option) *application {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
