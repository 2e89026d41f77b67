// Package scriptrender implements a deterministic renderer driven by the
// loaded route manifests. Each segment's cache reads, dynamic accesses, and
// chunk emissions are replayed as discrete turns of the task loop, so the
// render's interaction with stage transitions is a pure function of the
// manifest rather than of machine timing. The orchestration core treats it
// as any other renderer.Renderer.
package scriptrender

import (
	"context"
	"fmt"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/dynamic"
	"github.com/vk/renderloop/internal/future"
	"github.com/vk/renderloop/internal/renderer"
	"github.com/vk/renderloop/internal/scope"
	"github.com/vk/renderloop/internal/taskloop"
)

// Scripted renders one route manifest on a task loop.
type Scripted struct {
	route *config.Route
	loop  *taskloop.Loop
}

var _ renderer.Renderer = (*Scripted)(nil)

// New returns the data-pass renderer for route.
func New(route *config.Route, loop *taskloop.Loop) *Scripted {
	return &Scripted{route: route, loop: loop}
}

// NewHTML returns the renderer for the HTML-producing client pass: it emits
// the route's document shell, performs the client-pass dynamic accesses,
// then replays the buffered server payload.
func NewHTML(route *config.Route, serverPayload []byte, loop *taskloop.Loop) *Scripted {
	var shell string
	var dyn []*config.DynamicAccess
	if route.HTML != nil {
		shell = route.HTML.Shell
		dyn = route.HTML.Dynamic
	}
	var segments []*config.Segment
	if shell != "" {
		segments = append(segments, &config.Segment{Name: "shell", Chunks: []string{shell}})
	}
	hydration := &config.Segment{Name: "hydration", Dynamic: dyn}
	if len(serverPayload) > 0 {
		hydration.Chunks = []string{string(serverPayload)}
	}
	segments = append(segments, hydration)
	return &Scripted{
		route: &config.Route{Path: route.Path, Segments: segments},
		loop:  loop,
	}
}

// Render starts the scripted render and returns its stream. The first unit
// of work is posted as a loop task, so nothing is emitted during the
// calling turn.
func (s *Scripted) Render(ctx context.Context, sc scope.Scope, opts renderer.Options) *renderer.Stream {
	chunks := make(chan []byte)
	res := future.New[renderer.Result]()
	ru := &run{
		route:  s.route,
		loop:   s.loop,
		sc:     sc,
		opts:   opts,
		ctx:    ctx,
		chunks: chunks,
		result: res,
	}
	if opts.OnHeaders != nil {
		opts.OnHeaders(map[string]string{"x-rendered-route": s.route.Path})
	}
	s.loop.Post("render "+s.route.Path, func() { ru.resume(cursor{}) })
	return &renderer.Stream{Chunks: chunks, Result: res}
}

// cursor marks where a suspended render resumes: the segment index plus the
// offsets of the next cache read and dynamic access within it.
type cursor struct {
	seg   int
	cache int
	dyn   int
}

// run is the mutable state of one render. All fields after construction are
// touched only from loop tasks, so no locking is needed; the chunk channel
// carries the cross-goroutine handoff.
type run struct {
	route  *config.Route
	loop   *taskloop.Loop
	sc     scope.Scope
	opts   renderer.Options
	ctx    context.Context
	chunks chan []byte
	result *future.Future[renderer.Result]

	postponed []byte
	lastLabel string
	done      bool
}

func (ru *run) resume(cur cursor) {
	if ru.done {
		return
	}
	if ru.aborted() || ru.boundaryDone() {
		// Partial output is still a result: the postponed marker collected
		// so far must survive an abandoned render.
		ru.finish()
		return
	}
	for cur.seg < len(ru.route.Segments) {
		seg := ru.route.Segments[cur.seg]
		for cur.cache < len(seg.CacheReads) {
			cr := seg.CacheReads[cur.cache]
			cur.cache++
			if !ru.readCache(seg, cr, cur) {
				return
			}
		}
		for cur.dyn < len(seg.Dynamic) {
			d := seg.Dynamic[cur.dyn]
			cur.dyn++
			switch ru.access(seg, d, cur) {
			case accessContinue:
			case accessSuspend, accessStop:
				return
			}
		}
		ru.emitChunks(seg)
		if seg.Postpone {
			marker := fmt.Sprintf("postponed:%s#%s;", ru.route.Path, seg.Name)
			ru.postponed = append(ru.postponed, marker...)
		}
		cur = cursor{seg: cur.seg + 1}
	}
	ru.finish()
}

// readCache performs one declared cache read. It reports false when the
// read suspended on a cold fill; the continuation resumes at next.
func (ru *run) readCache(seg *config.Segment, cr *config.CacheRead, next cursor) bool {
	rc := ru.sc.ResumeCache()
	if rc.Has(cr.Key) {
		// A hit reuses the window recorded when the entry was filled.
		ru.sc.Life().Merge(rc.Revalidate(cr.Key), cr.Expire, cr.Stale)
		return true
	}
	sig := ru.sc.CacheReads()
	if sig == nil {
		// A pass with a warm cache hit a cold entry. There is no filling
		// machinery here, so the read degrades to request-time data.
		if tr := ru.sc.Tracker(); tr != nil {
			tr.Record("cache:"+cr.Key, seg.Name)
		}
		return true
	}
	end := sig.BeginRead()
	ru.loop.PostAfter(cr.FillTurns, "fill "+cr.Key, func() {
		rc.PutWithRevalidate(cr.Key, []byte("filled:"+cr.Key), cr.Revalidate)
		ru.sc.Life().Merge(cr.Revalidate, cr.Expire, cr.Stale)
		// Resume before ending the read so a chained read registers with
		// the signal ahead of its zero-crossing recheck.
		ru.resume(next)
		end()
	})
	return false
}

type accessOutcome int

const (
	accessContinue accessOutcome = iota
	accessSuspend
	accessStop
)

func (ru *run) access(seg *config.Segment, d *config.DynamicAccess, next cursor) accessOutcome {
	if d.Invalid {
		err := &dynamic.UsageError{Route: ru.route.Path, Expression: d.Expression}
		if ru.opts.OnError != nil {
			ru.opts.OnError(err)
		}
		ru.fail(err)
		return accessStop
	}
	tr := ru.sc.Tracker()
	if d.Sync {
		if tr != nil {
			tr.RecordSync(d.Expression, seg.Name)
		}
		if p, ok := ru.sc.(*scope.Prerender); ok && p.Stages() != nil {
			p.Stages().AbandonSyncIO(d.Expression)
			p.CancelRender(fmt.Errorf("synchronous dynamic I/O: %s", d.Expression))
			ru.finish()
			return accessStop
		}
		return accessContinue
	}
	if tr != nil {
		tr.Record(d.Expression, seg.Name)
	}
	if d.AfterTurns > 0 {
		ru.loop.PostAfter(d.AfterTurns, "dynamic "+d.Expression, func() { ru.resume(next) })
		return accessSuspend
	}
	return accessContinue
}

func (ru *run) emitChunks(seg *config.Segment) {
	sent := false
	if ru.opts.EnvironmentLabel != nil && len(seg.Chunks) > 0 {
		if label := ru.opts.EnvironmentLabel(); label != ru.lastLabel {
			ru.lastLabel = label
			ru.send([]byte("<!--env:" + label + "-->"))
			sent = true
		}
	}
	for _, c := range seg.Chunks {
		if c == "" {
			continue
		}
		ru.send([]byte(c))
		sent = true
	}
	if sent {
		// Zero-length fence: once this send is received, every chunk above
		// has been bucketed against the stage current in this turn.
		ru.send(nil)
	}
}

func (ru *run) send(b []byte) {
	select {
	case ru.chunks <- b:
	case <-ru.ctx.Done():
	case <-ru.sc.RenderContext().Done():
	}
}

func (ru *run) aborted() bool {
	return ru.ctx.Err() != nil || ru.sc.RenderContext().Err() != nil
}

// boundaryDone reports whether the scope's prerender boundary has been
// cancelled. Past the boundary the render stops emitting, but in-flight
// data reads are left alone.
func (ru *run) boundaryDone() bool {
	p, ok := ru.sc.(*scope.Prerender)
	return ok && p.BoundaryContext().Err() != nil
}

func (ru *run) finish() {
	if ru.done {
		return
	}
	ru.done = true
	close(ru.chunks)
	ru.result.Resolve(renderer.Result{Postponed: ru.postponed})
}

func (ru *run) fail(err error) {
	if ru.done {
		return
	}
	ru.done = true
	close(ru.chunks)
	ru.result.Reject(err)
}
