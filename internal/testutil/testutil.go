// Package testutil provides shared helpers for renderloop tests: a
// thread-safe log buffer, a temp-file route manifest harness, and a
// context pre-wired with a test logger.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/ctxlog"
	"github.com/vk/renderloop/internal/hcl"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements io.Writer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements fmt.Stringer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a background context carrying a debug-level text logger
// that writes into the returned buffer.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// WriteManifest writes the given HCL source into a temp directory and
// returns the file path.
func WriteManifest(t *testing.T, routeHCL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.hcl")
	require.NoError(t, os.WriteFile(path, []byte(routeHCL), 0o644))
	return path
}

// LoadRoutes parses a route manifest from an HCL string through the real
// loader and returns the translated model.
func LoadRoutes(t *testing.T, routeHCL string) *config.Model {
	t.Helper()
	ctx, _ := Context(t)
	model, err := hcl.NewLoader().Load(ctx, WriteManifest(t, routeHCL))
	require.NoError(t, err)
	return model
}

// LoadRoute is LoadRoutes for manifests declaring exactly one route.
func LoadRoute(t *testing.T, routeHCL string) *config.Route {
	t.Helper()
	model := LoadRoutes(t, routeHCL)
	require.Len(t, model.Routes, 1)
	return model.Routes[0]
}
