package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	model  *config.Model
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the loaded
// route model.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.RoutesPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load route manifests: %w", err))
	}
	logger.Debug("Route manifests loaded into unified model.", "routes", len(model.Routes))

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		model:  model,
	}
}

// Model returns the loaded route model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
