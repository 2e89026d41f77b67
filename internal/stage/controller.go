package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInterrupted is the sentinel wrapped by every InterruptError. Callers
// distinguish expected abandonment from genuine failures with
// errors.Is(err, stage.ErrInterrupted).
var ErrInterrupted = errors.New("staged render interrupted")

// InterruptError is returned from pending stage waits when the controller is
// abandoned.
type InterruptError struct {
	// Reason describes why the render was abandoned, e.g. a cache miss.
	Reason string
	// SyncIO is true when abandonment was caused by detected synchronous
	// dynamic I/O rather than a cache miss. Used for diagnostics only.
	SyncIO bool
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("staged render interrupted: %s", e.Reason)
}

func (e *InterruptError) Unwrap() error { return ErrInterrupted }

// Controller sequences a single render attempt through the ordered stages.
// It is created once per attempt and advanced between task boundaries by the
// orchestration layer. All methods are safe for concurrent use.
type Controller struct {
	mu           sync.Mutex
	current      Stage
	abandoned    bool
	interrupt    *InterruptError
	gates        map[Stage]chan struct{}
	abandonHooks []func()
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithAbortContext wires an external abort signal: when ctx is cancelled the
// controller is abandoned and all pending stage waits fail. The listener
// runs in its own goroutine; no ordering is implied relative to other
// cancellation listeners on the same context.
func WithAbortContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx == nil {
			return
		}
		context.AfterFunc(ctx, func() {
			c.Abandon(fmt.Sprintf("render aborted: %v", context.Cause(ctx)))
		})
	}
}

// NewController returns a controller positioned at Before.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		current: Before,
		gates:   make(map[Stage]chan struct{}, int(lastAdvanceable)),
	}
	for s := firstAdvanceable; s <= lastAdvanceable; s++ {
		c.gates[s] = make(chan struct{})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the controller's current stage, or Abandoned.
func (c *Controller) Current() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned {
		return Abandoned
	}
	return c.current
}

// EnvironmentLabel reports the phase name for the current stage. It is
// queried by the renderer per subtree while streaming.
func (c *Controller) EnvironmentLabel() string {
	return c.Current().EnvironmentLabel()
}

// Advance moves the controller to s, resolving the gate for s and any
// earlier gate that was passed over. Advancing to a stage at or below the
// current one is a programming error and panics. After abandonment Advance
// is a no-op: abandonment wins.
func (c *Controller) Advance(s Stage) {
	if s < firstAdvanceable || s > lastAdvanceable {
		panic(fmt.Sprintf("stage: cannot advance to %s", s))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned {
		return
	}
	if s <= c.current {
		panic(fmt.Sprintf("stage: advance from %s to %s is not monotonic", c.current, s))
	}
	prev := c.current
	c.current = s
	// Resolve every gate between the previous stage and s. A passed-over
	// stage is logically reached the moment a later one is.
	for g := prev + 1; g <= s; g++ {
		if ch, ok := c.gates[g]; ok {
			select {
			case <-ch:
			default:
				close(ch)
			}
		}
	}
}

// Abandon terminally interrupts the render. All pending stage waits fail
// with an InterruptError. Triggering abandonment twice has the same effect
// as once; the first reason wins.
func (c *Controller) Abandon(reason string) {
	c.abandon(&InterruptError{Reason: reason})
}

// AbandonSyncIO abandons the render because expression performed synchronous
// dynamic I/O during a stage where it is disallowed.
func (c *Controller) AbandonSyncIO(expression string) {
	c.abandon(&InterruptError{Reason: "synchronous dynamic I/O: " + expression, SyncIO: true})
}

func (c *Controller) abandon(ie *InterruptError) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return
	}
	c.abandoned = true
	c.interrupt = ie
	hooks := c.abandonHooks
	c.abandonHooks = nil
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Abandoned reports whether the controller has been terminally interrupted.
func (c *Controller) Abandoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abandoned
}

// InterruptReason returns the InterruptError recorded at abandonment, or nil.
func (c *Controller) InterruptReason() *InterruptError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupt
}

// SyncInterrupt reports whether abandonment was caused by detected
// synchronous dynamic I/O, as opposed to a genuine cache miss.
func (c *Controller) SyncInterrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupt != nil && c.interrupt.SyncIO
}

// reached returns a channel closed once s is reached. The caller must also
// watch for abandonment; see Wait.
func (c *Controller) reached(s Stage) <-chan struct{} {
	if s < firstAdvanceable || s > lastAdvanceable {
		panic(fmt.Sprintf("stage: cannot wait for %s", s))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current >= s {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.gates[s]
}

// Wait blocks until s is reached. It fails with an InterruptError if the
// controller is abandoned first, or with the context cause if ctx is done.
// If s was already reached, Wait returns immediately even when the
// controller was abandoned afterwards.
func (c *Controller) Wait(ctx context.Context, s Stage) error {
	gate := c.reached(s)
	select {
	case <-gate:
		return nil
	default:
	}

	// Abandonment does not close gates, so pair the gate with a context
	// cancelled once the controller is abandoned.
	abandonCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.onAbandon(cancel)

	select {
	case <-gate:
		return nil
	case <-abandonCtx.Done():
		if ie := c.InterruptReason(); ie != nil {
			return ie
		}
		return &InterruptError{Reason: "abandoned"}
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// onAbandon arranges for fn to run once the controller is abandoned. If it
// already is, fn runs immediately.
func (c *Controller) onAbandon(fn func()) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		fn()
		return
	}
	c.abandonHooks = append(c.abandonHooks, fn)
	c.mu.Unlock()
}
