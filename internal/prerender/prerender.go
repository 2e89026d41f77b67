// Package prerender orchestrates the two-pass build-time render of a route
// and classifies the outcome. The prospective pass runs with a live cache
// signal and fills the resume cache; the final pass replays against the
// warm cache while racing the render through the staged tick budget. The
// HTML-producing client pass then wraps the buffered server output and is
// raced the same way. Classification is schedule-relative: it depends only
// on how the render's work lines up with loop turns, never on wall-clock
// timing.
package prerender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/ctxlog"
	"github.com/vk/renderloop/internal/dynamic"
	"github.com/vk/renderloop/internal/future"
	"github.com/vk/renderloop/internal/renderer"
	"github.com/vk/renderloop/internal/resume"
	"github.com/vk/renderloop/internal/scope"
	"github.com/vk/renderloop/internal/scriptrender"
	"github.com/vk/renderloop/internal/stage"
	"github.com/vk/renderloop/internal/streambuf"
	"github.com/vk/renderloop/internal/taskloop"
)

// DefaultBudget is the number of turn boundaries the final pass may span
// before its remaining work counts as dynamic.
const DefaultBudget = 4

// ErrEmptyShell reports a dynamic route whose HTML pass produced no static
// document shell at all.
var ErrEmptyShell = errors.New("dynamic route produced an empty static shell")

// Classification is the build-time category of a route.
type Classification int

const (
	// Static routes completed inside the tick budget with no dynamic
	// access; the buffered output can be served as-is.
	Static Classification = iota
	// DynamicData routes have a complete HTML shell but server data that
	// must be produced per request.
	DynamicData
	// DynamicHTML routes have holes in the document itself and must be
	// resumed per request.
	DynamicHTML
)

func (c Classification) String() string {
	switch c {
	case Static:
		return "static"
	case DynamicData:
		return "dynamic-data"
	case DynamicHTML:
		return "dynamic-html"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// Result is the outcome of prerendering one route.
type Result struct {
	Route          string
	Classification Classification

	// Data holds the per-stage buffers of the server data stream.
	Data streambuf.Buffers
	// HTML holds the per-stage buffers of the document stream.
	HTML streambuf.Buffers
	// Postponed is the resumption token for per-request completion, nil
	// when the document has no holes.
	Postponed []byte
	// Dynamic lists every dynamic access observed across both passes.
	Dynamic []dynamic.Access
	// Headers is the early response metadata emitted by the render.
	Headers map[string]string

	// Revalidate, Expire, and Stale are the narrowest cache-lifetime
	// windows (seconds) of any entry the render read; zero means
	// unconstrained.
	Revalidate int
	Expire     int
	Stale      int
}

// Options configures an Orchestrator.
type Options struct {
	// Budget overrides DefaultBudget when positive.
	Budget int
	// AllowEmptyShell suppresses ErrEmptyShell for dynamic routes that
	// render no static document shell.
	AllowEmptyShell bool
	// DataRenderer overrides the renderer for the server data pass.
	DataRenderer func(*config.Route) renderer.Renderer
	// HTMLRenderer overrides the renderer for the document pass; it
	// receives the buffered server payload.
	HTMLRenderer func(*config.Route, []byte) renderer.Renderer
}

// Orchestrator prerenders routes on a single task loop.
type Orchestrator struct {
	loop            *taskloop.Loop
	budget          int
	allowEmptyShell bool
	data            func(*config.Route) renderer.Renderer
	html            func(*config.Route, []byte) renderer.Renderer
}

// New returns an orchestrator driving renders on loop. Renderers default to
// the scripted manifest renderer.
func New(loop *taskloop.Loop, opts Options) *Orchestrator {
	o := &Orchestrator{
		loop:            loop,
		budget:          opts.Budget,
		allowEmptyShell: opts.AllowEmptyShell,
		data:            opts.DataRenderer,
		html:            opts.HTMLRenderer,
	}
	if o.budget <= 0 {
		o.budget = DefaultBudget
	}
	if o.data == nil {
		o.data = func(r *config.Route) renderer.Renderer {
			return scriptrender.New(r, loop)
		}
	}
	if o.html == nil {
		o.html = func(r *config.Route, payload []byte) renderer.Renderer {
			return scriptrender.NewHTML(r, payload, loop)
		}
	}
	return o
}

// Prerender runs both passes for route and classifies it.
func (o *Orchestrator) Prerender(ctx context.Context, route *config.Route) (*Result, error) {
	log := ctxlog.FromContext(ctx)
	rc := resume.NewCache()

	if err := o.fillCache(ctx, route, rc); err != nil {
		return nil, fmt.Errorf("prospective pass for %s: %w", route.Path, err)
	}
	log.Debug("prospective pass complete", "route", route.Path, "cache_entries", rc.Len())

	data, err := o.runStaged(ctx, o.data(route), rc)
	if err != nil {
		return nil, fmt.Errorf("final pass for %s: %w", route.Path, err)
	}

	payload := bytes.Clone(data.bufs.Dynamic)
	html, err := o.runStaged(ctx, o.html(route, payload), rc)
	if err != nil {
		return nil, fmt.Errorf("html pass for %s: %w", route.Path, err)
	}

	htmlDynamic := html.pending || html.syncInterrupt || !html.tracker.Empty()
	dataDynamic := data.pending || data.syncInterrupt || !data.tracker.Empty()
	postponed := data.res.Postponed

	// One record of every dynamic access, data pass first.
	data.tracker.Consume(html.tracker)

	var class Classification
	switch {
	case len(postponed) > 0 || htmlDynamic:
		class = DynamicHTML
	case dataDynamic:
		class = DynamicData
	default:
		class = Static
	}

	if class != Static && len(html.bufs.Static) == 0 && !o.allowEmptyShell {
		return nil, fmt.Errorf("route %s: %w", route.Path, ErrEmptyShell)
	}

	revalidate, expire, stale := data.life.Snapshot()
	res := &Result{
		Route:          route.Path,
		Classification: class,
		Data:           data.bufs,
		HTML:           html.bufs,
		Postponed:      postponed,
		Dynamic:        data.tracker.Accesses(),
		Headers:        data.headers,
		Revalidate:     revalidate,
		Expire:         expire,
		Stale:          stale,
	}
	log.Info("route prerendered",
		"route", route.Path,
		"classification", class.String(),
		"static_bytes", len(res.HTML.Static),
		"dynamic_accesses", len(res.Dynamic),
	)
	return res, nil
}

// fillCache runs the prospective pass: render with a live cache signal,
// wait for every discovered read to settle, then tear the render down.
// Render errors are swallowed here except invalid dynamic usage, which is
// fatal for the route no matter which pass surfaces it.
func (o *Orchestrator) fillCache(ctx context.Context, route *config.Route, rc *resume.Cache) error {
	sc := scope.NewProspective(ctx, rc, o.loop)
	defer sc.CancelBoundary(errors.New("prospective pass finished"))

	var mu sync.Mutex
	var usage error
	stream := o.data(route).Render(sc.RenderContext(), sc, renderer.Options{
		OnError: func(err error) {
			mu.Lock()
			if usage == nil && dynamic.IsUsageError(err) {
				usage = err
			}
			mu.Unlock()
		},
		EnvironmentLabel: func() string { return "Prerender" },
	})
	// Arm only after the render task is queued, so the initial
	// zero-crossing check runs behind the first read registrations.
	sc.CacheReads().Arm()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range stream.Chunks {
		}
	}()

	if err := sc.CacheReads().Wait(ctx); err != nil {
		sc.CancelRender(err)
		<-drained
		return err
	}
	sc.CancelRender(errors.New("cache filling complete"))
	<-drained

	mu.Lock()
	defer mu.Unlock()
	return usage
}

// stagedOutcome captures everything the classifier needs from one staged
// run.
type stagedOutcome struct {
	bufs          streambuf.Buffers
	res           renderer.Result
	pending       bool
	syncInterrupt bool
	tracker       *dynamic.Tracker
	life          *scope.Lifetime
	headers       map[string]string
}

// runStaged races one render against the stage ladder: the head turn
// starts the render and enters EarlyStatic, the intermediate steps walk
// Static, EarlyRuntime, and Runtime across the remaining budget, and the
// final step records whether work is still in flight before entering
// Dynamic. The controller resolves passed-over gates on a jump, so budgets
// shorter than the ladder still release every stage.
func (o *Orchestrator) runStaged(ctx context.Context, rend renderer.Renderer, rc *resume.Cache) (*stagedOutcome, error) {
	sc := scope.NewFinal(ctx, rc)
	ctl := sc.Stages()
	acc := streambuf.NewAccumulator(ctl)

	out := &stagedOutcome{tracker: sc.Tracker(), life: sc.Life()}
	var stream *renderer.Stream

	head := func() (*future.Future[renderer.Result], error) {
		stream = rend.Render(sc.RenderContext(), sc, renderer.Options{
			EnvironmentLabel: ctl.EnvironmentLabel,
			OnHeaders:        func(h map[string]string) { out.headers = h },
		})
		go acc.Consume(stream.Chunks)
		ctl.Advance(stage.EarlyStatic)
		return stream.Result, nil
	}

	ladder := []stage.Stage{stage.Static, stage.EarlyRuntime, stage.Runtime}
	steps := make([]taskloop.Step, 0, o.budget)
	for i := 0; i < o.budget-1; i++ {
		var target stage.Stage
		ok := i < len(ladder)
		if ok {
			target = ladder[i]
		}
		steps = append(steps, func() error {
			if ok {
				ctl.Advance(target)
			}
			return nil
		})
	}
	steps = append(steps, func() error {
		out.syncInterrupt = ctl.SyncInterrupt()
		out.pending = stream.Pending()
		ctl.Advance(stage.Dynamic)
		sc.CancelBoundary(errors.New("prerender boundary reached"))
		if out.pending {
			sc.CancelRender(errors.New("tick budget exhausted"))
		}
		return nil
	})

	res, err := taskloop.Sequence(o.loop, head, steps...).Get(ctx)
	if err != nil {
		if stream != nil {
			acc.Wait()
		}
		return nil, err
	}
	acc.Wait()
	out.res = res
	out.bufs = acc.Buffers()
	return out, nil
}
