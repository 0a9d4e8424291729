package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/vk/projforge/internal/generator"
	"github.com/vk/projforge/internal/hcl"
)

// Loader reads definition files. hcl.Loader is the production implementation.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*hcl.Definitions, error)
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	loader  Loader
	writers []generator.Option
	now     func() time.Time
}

// NewApp is the constructor for the main application. Writers add to or
// replace the generator's built-in set.
func NewApp(outW io.Writer, cfg *Config, loader Loader, writers ...generator.Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		loader:  loader,
		writers: writers,
		now:     time.Now,
	}
}
