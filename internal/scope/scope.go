// Package scope defines the render-scope values threaded explicitly through
// a render attempt. A scope is built once per attempt by one of the
// constructors and never mutated afterwards; the prospective and final
// passes of the same logical request get distinct scopes that share only
// the resume-data cache.
package scope

import (
	"context"

	"github.com/google/uuid"

	"github.com/vk/renderloop/internal/cachesignal"
	"github.com/vk/renderloop/internal/dynamic"
	"github.com/vk/renderloop/internal/resume"
	"github.com/vk/renderloop/internal/stage"
	"github.com/vk/renderloop/internal/taskloop"
)

// Scope is the closed set of render-scope variants. Only the prerender and
// request variants exist in this core; other store kinds used elsewhere in
// the framework are opaque to it.
type Scope interface {
	sealed()

	// ID identifies the render attempt in logs.
	ID() string
	// RenderContext is cancelled to reject pending request-data reads.
	RenderContext() context.Context
	// CacheReads is non-nil only while the attempt is cache-filling.
	CacheReads() *cachesignal.Signal
	// Tracker is non-nil when dynamic accesses are being recorded.
	Tracker() *dynamic.Tracker
	// Stages is non-nil when the attempt is driven by staged rendering.
	Stages() *stage.Controller
	// ResumeCache is the resume-data cache shared across passes.
	ResumeCache() *resume.Cache
	// Life collects cache-lifetime metadata observed during the render.
	Life() *Lifetime
	// CancelRender tears down pending request-data reads.
	CancelRender(cause error)
}

// Prerender is the scope of one prerender attempt (prospective, final, or
// the HTML pass).
type Prerender struct {
	attemptID string

	// renderCtx rejects pending request-data reads as soon as it is
	// cancelled.
	renderCtx    context.Context
	cancelRender context.CancelCauseFunc

	// boundaryCtx marks the prerender/dynamic boundary; cancelling it ends
	// the prerender without tearing down in-flight data reads first.
	boundaryCtx    context.Context
	cancelBoundary context.CancelCauseFunc

	cacheSignal *cachesignal.Signal
	tracker     *dynamic.Tracker
	stages      *stage.Controller
	life        *Lifetime
	resumeCache *resume.Cache
}

func (p *Prerender) sealed() {}

func (p *Prerender) ID() string                       { return p.attemptID }
func (p *Prerender) RenderContext() context.Context   { return p.renderCtx }
func (p *Prerender) CacheReads() *cachesignal.Signal  { return p.cacheSignal }
func (p *Prerender) Tracker() *dynamic.Tracker        { return p.tracker }
func (p *Prerender) Stages() *stage.Controller        { return p.stages }
func (p *Prerender) ResumeCache() *resume.Cache       { return p.resumeCache }
func (p *Prerender) Life() *Lifetime                  { return p.life }
func (p *Prerender) BoundaryContext() context.Context { return p.boundaryCtx }

// CancelRender tears down pending request-data reads with the given cause.
func (p *Prerender) CancelRender(cause error) { p.cancelRender(cause) }

// CancelBoundary marks the prerender boundary complete.
func (p *Prerender) CancelBoundary(cause error) { p.cancelBoundary(cause) }

// Request is the scope of a per-request render, used by the dev
// restart coordinator's warm re-render.
type Request struct {
	attemptID    string
	renderCtx    context.Context
	cancelRender context.CancelCauseFunc
	tracker      *dynamic.Tracker
	stages       *stage.Controller
	life         *Lifetime
	resumeCache  *resume.Cache
}

func (r *Request) sealed() {}

func (r *Request) ID() string                      { return r.attemptID }
func (r *Request) RenderContext() context.Context  { return r.renderCtx }
func (r *Request) CacheReads() *cachesignal.Signal { return nil }
func (r *Request) Tracker() *dynamic.Tracker       { return r.tracker }
func (r *Request) Stages() *stage.Controller       { return r.stages }
func (r *Request) ResumeCache() *resume.Cache      { return r.resumeCache }
func (r *Request) Life() *Lifetime                 { return r.life }

// CancelRender tears down pending request-data reads with the given cause.
func (r *Request) CancelRender(cause error) { r.cancelRender(cause) }

// NewProspective builds the scope of the cache-filling pass: a live cache
// signal whose drain rechecks run as loop turns, dynamic tracking for
// invalid-usage detection, and no staged rendering, since this pass is not
// raced against task boundaries.
func NewProspective(parent context.Context, rc *resume.Cache, loop *taskloop.Loop) *Prerender {
	renderCtx, cancelRender := context.WithCancelCause(parent)
	boundaryCtx, cancelBoundary := context.WithCancelCause(parent)
	return &Prerender{
		attemptID:      uuid.NewString(),
		renderCtx:      renderCtx,
		cancelRender:   cancelRender,
		boundaryCtx:    boundaryCtx,
		cancelBoundary: cancelBoundary,
		cacheSignal:    newSignal(loop),
		tracker:        dynamic.NewTracker(),
		life:           NewLifetime(),
		resumeCache:    rc,
	}
}

// newSignal builds a cache signal whose zero-crossing rechecks are discrete
// loop turns, keeping read-chain discovery schedule-relative.
func newSignal(loop *taskloop.Loop) *cachesignal.Signal {
	if loop == nil {
		return cachesignal.New()
	}
	return cachesignal.New(cachesignal.WithScheduler(func(fn func()) {
		loop.Post("cachesignal.recheck", fn)
	}))
}

// NewFinal builds the scope of the final pass: no cache signal (the resume
// cache is warm), a fresh tracker, and a stage controller that abandons
// when the render context aborts. Cancellation listeners on that context
// each run in their own goroutine, so the renderer must tolerate observing
// the abandonment in any order relative to its own listeners.
func NewFinal(parent context.Context, rc *resume.Cache) *Prerender {
	renderCtx, cancelRender := context.WithCancelCause(parent)
	boundaryCtx, cancelBoundary := context.WithCancelCause(parent)
	return &Prerender{
		attemptID:      uuid.NewString(),
		renderCtx:      renderCtx,
		cancelRender:   cancelRender,
		boundaryCtx:    boundaryCtx,
		cancelBoundary: cancelBoundary,
		tracker:        dynamic.NewTracker(),
		stages:         stage.NewController(stage.WithAbortContext(renderCtx)),
		life:           NewLifetime(),
		resumeCache:    rc,
	}
}

// NewDevAttempt builds the scope of the dev coordinator's first pass: a
// live cache signal and a stage controller the coordinator abandons
// directly when it detects a pending read at a stage boundary.
func NewDevAttempt(parent context.Context, rc *resume.Cache, loop *taskloop.Loop) *Prerender {
	renderCtx, cancelRender := context.WithCancelCause(parent)
	boundaryCtx, cancelBoundary := context.WithCancelCause(parent)
	return &Prerender{
		attemptID:      uuid.NewString(),
		renderCtx:      renderCtx,
		cancelRender:   cancelRender,
		boundaryCtx:    boundaryCtx,
		cancelBoundary: cancelBoundary,
		cacheSignal:    newSignal(loop),
		tracker:        dynamic.NewTracker(),
		stages:         stage.NewController(),
		life:           NewLifetime(),
		resumeCache:    rc,
	}
}

// NewRequest builds a per-request scope for the warm re-render. Its stage
// controller has no abort wiring: this pass is not allowed to abandon.
func NewRequest(parent context.Context, rc *resume.Cache) *Request {
	renderCtx, cancelRender := context.WithCancelCause(parent)
	return &Request{
		attemptID:    uuid.NewString(),
		renderCtx:    renderCtx,
		cancelRender: cancelRender,
		tracker:      dynamic.NewTracker(),
		stages:       stage.NewController(),
		life:         NewLifetime(),
		resumeCache:  rc,
	}
}
