// Package renderer defines the contract between the orchestration core and
// the opaque streaming renderer that turns a payload into bytes. The core
// never inspects how the stream is produced; it only observes chunk arrival
// timing relative to stage transitions and the final success or failure.
package renderer

import (
	"context"

	"github.com/vk/renderloop/internal/future"
	"github.com/vk/renderloop/internal/scope"
)

// Options carries the hooks the orchestrator hands to a render.
type Options struct {
	// OnError observes recoverable render errors without failing the
	// stream.
	OnError func(error)
	// EnvironmentLabel is queried per subtree to tag output with the
	// current phase name.
	EnvironmentLabel func() string
	// OnHeaders receives early response metadata produced by the render.
	OnHeaders func(map[string]string)
}

// Result is the terminal outcome of one render stream.
type Result struct {
	// Postponed is the opaque resumption token for an HTML hole that must
	// be completed per request, or nil when the render left no hole.
	Postponed []byte
}

// Stream is the live output of one render: a chunk channel closed when the
// render finishes, plus a future that settles with the terminal result.
// pending-ness of the future is what the tick-budget race observes.
type Stream struct {
	Chunks <-chan []byte
	Result *future.Future[Result]
}

// Pending reports whether the render's work is still in flight.
func (s *Stream) Pending() bool {
	return !s.Result.Settled()
}

// Renderer is the opaque streaming renderer. The scope is passed explicitly
// rather than through ambient storage; it carries the attempt's cache
// signal, dynamic tracker, and stage controller for the framework data APIs
// the rendered tree calls into.
type Renderer interface {
	Render(ctx context.Context, sc scope.Scope, opts Options) *Stream
}

// Func adapts a function to the Renderer interface.
type Func func(ctx context.Context, sc scope.Scope, opts Options) *Stream

// Render implements Renderer.
func (f Func) Render(ctx context.Context, sc scope.Scope, opts Options) *Stream {
	return f(ctx, sc, opts)
}
