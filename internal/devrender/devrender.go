// Package devrender coordinates development-mode renders, where the resume
// cache starts cold on every edit. A first attempt runs with a live cache
// signal and is guarded at every stage boundary: advancing past a pending
// cache read would bake partial cache state into the staged buffers, so the
// attempt is abandoned instead, left running to warm the cache, and the
// route is rerendered from a fresh request scope once every read settled.
package devrender

import (
	"context"
	"errors"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/ctxlog"
	"github.com/vk/renderloop/internal/future"
	"github.com/vk/renderloop/internal/prerender"
	"github.com/vk/renderloop/internal/renderer"
	"github.com/vk/renderloop/internal/resume"
	"github.com/vk/renderloop/internal/scope"
	"github.com/vk/renderloop/internal/scriptrender"
	"github.com/vk/renderloop/internal/stage"
	"github.com/vk/renderloop/internal/streambuf"
	"github.com/vk/renderloop/internal/taskloop"
)

// errRestart aborts the staged sequence of the first attempt.
var errRestart = errors.New("pending cache read at a stage boundary")

// Options configures a Coordinator.
type Options struct {
	// Budget overrides prerender.DefaultBudget when positive.
	Budget int
	// Renderer overrides the renderer used for both attempts.
	Renderer func(*config.Route) renderer.Renderer
}

// Result is the outcome of one development render.
type Result struct {
	Route     string
	Buffers   streambuf.Buffers
	Postponed []byte
	// Restarted reports that the first attempt hit a cold cache read and
	// the output comes from the warm rerun.
	Restarted bool
	// Attempts counts the render attempts, including the abandoned one.
	Attempts int
}

// Coordinator renders routes in development mode on a single task loop.
type Coordinator struct {
	loop   *taskloop.Loop
	budget int
	render func(*config.Route) renderer.Renderer
}

// New returns a coordinator driving renders on loop.
func New(loop *taskloop.Loop, opts Options) *Coordinator {
	c := &Coordinator{loop: loop, budget: opts.Budget, render: opts.Renderer}
	if c.budget <= 0 {
		c.budget = prerender.DefaultBudget
	}
	if c.render == nil {
		c.render = func(r *config.Route) renderer.Renderer {
			return scriptrender.New(r, loop)
		}
	}
	return c
}

// Render runs the staged first attempt and, if a cold cache read forced an
// abandon, the warm rerun.
func (c *Coordinator) Render(ctx context.Context, route *config.Route) (*Result, error) {
	log := ctxlog.FromContext(ctx)
	rc := resume.NewCache()

	res, err := c.attempt(ctx, route, rc)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, errRestart) {
		return nil, err
	}

	log.Debug("rerendering after cold cache", "route", route.Path, "cache_entries", rc.Len())
	res, err = c.rerun(ctx, route, rc)
	if err != nil {
		return nil, err
	}
	res.Restarted = true
	res.Attempts = 2
	return res, nil
}

// attempt is the staged first render. Every stage advance is preceded by
// the pending-read guard; tripping it abandons the attempt with errRestart
// but leaves the render running so its fills finish warming the cache.
func (c *Coordinator) attempt(ctx context.Context, route *config.Route, rc *resume.Cache) (*Result, error) {
	sc := scope.NewDevAttempt(ctx, rc, c.loop)
	ctl := sc.Stages()
	sig := sc.CacheReads()
	acc := streambuf.NewAccumulator(ctl)
	var stream *renderer.Stream

	head := func() (*future.Future[renderer.Result], error) {
		stream = c.render(route).Render(sc.RenderContext(), sc, renderer.Options{
			EnvironmentLabel: ctl.EnvironmentLabel,
		})
		go acc.Consume(stream.Chunks)
		ctl.Advance(stage.EarlyStatic)
		return stream.Result, nil
	}

	guard := func() error {
		if sig.HasPendingReads() {
			ctl.Abandon(errRestart.Error())
			return errRestart
		}
		return nil
	}

	ladder := []stage.Stage{stage.Static, stage.EarlyRuntime, stage.Runtime}
	steps := make([]taskloop.Step, 0, c.budget)
	for i := 0; i < c.budget-1; i++ {
		var target stage.Stage
		ok := i < len(ladder)
		if ok {
			target = ladder[i]
		}
		steps = append(steps, func() error {
			if err := guard(); err != nil {
				return err
			}
			if ok {
				ctl.Advance(target)
			}
			return nil
		})
	}
	steps = append(steps, func() error {
		if err := guard(); err != nil {
			return err
		}
		pending := stream.Pending()
		ctl.Advance(stage.Dynamic)
		if pending {
			sc.CancelRender(errors.New("tick budget exhausted"))
		}
		return nil
	})

	res, err := taskloop.Sequence(c.loop, head, steps...).Get(ctx)
	if err != nil {
		if errors.Is(err, errRestart) && stream != nil {
			// Let the abandoned render's fills run out: they are what make
			// the rerun warm.
			if werr := sig.Wait(ctx); werr != nil {
				sc.CancelRender(werr)
				return nil, werr
			}
			// The renderer is opaque; an irreducibly dynamic value settles
			// only once the render signal aborts, so abort before draining.
			sc.CancelRender(errRestart)
			sc.CancelBoundary(errRestart)
			select {
			case <-stream.Result.Done():
			case <-ctx.Done():
				return nil, context.Cause(ctx)
			}
			acc.Wait()
		}
		return nil, err
	}
	acc.Wait()
	return &Result{
		Route:     route.Path,
		Buffers:   acc.Buffers(),
		Postponed: res.Postponed,
		Attempts:  1,
	}, nil
}

// rerun renders against the warm cache from a fresh request scope. Its
// stage controller has no abandon wiring and no guard: a per-request render
// is entitled to the cache state it observes.
func (c *Coordinator) rerun(ctx context.Context, route *config.Route, rc *resume.Cache) (*Result, error) {
	sc := scope.NewRequest(ctx, rc)
	ctl := sc.Stages()
	acc := streambuf.NewAccumulator(ctl)
	var stream *renderer.Stream

	head := func() (*future.Future[renderer.Result], error) {
		stream = c.render(route).Render(sc.RenderContext(), sc, renderer.Options{
			EnvironmentLabel: ctl.EnvironmentLabel,
		})
		go acc.Consume(stream.Chunks)
		ctl.Advance(stage.EarlyStatic)
		return stream.Result, nil
	}

	ladder := []stage.Stage{stage.Static, stage.EarlyRuntime, stage.Runtime}
	steps := make([]taskloop.Step, 0, c.budget)
	for i := 0; i < c.budget-1; i++ {
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
		ctl.Advance(stage.Dynamic)
		return nil
	})

	res, err := taskloop.Sequence(c.loop, head, steps...).Get(ctx)
	if err != nil {
		return nil, err
	}
	acc.Wait()
	return &Result{
		Route:     route.Path,
		Buffers:   acc.Buffers(),
		Postponed: res.Postponed,
		Attempts:  1,
	}, nil
}
