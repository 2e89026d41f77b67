// Package cachesignal tracks outstanding asynchronous cache and module-load
// reads during a cache-filling render. The orchestrator waits on the signal
// to know when it is safe to abort the prospective render pass: every read
// it discovered has finished writing its cache entry.
package cachesignal

import (
	"context"
	"runtime"
	"sync"
)

// Signal is a reference-counted readiness gate. Reads registered while the
// gate is draining re-arm it: Ready only fires after the pending count
// returns to zero and stays there through a full recheck, which tolerates
// module-loading chains that recursively trigger more reads across several
// scheduling turns.
type Signal struct {
	mu          sync.Mutex
	pending     int
	generation  uint64
	everTracked bool
	ready       chan struct{}
	closed      bool
	schedule    func(fn func())
}

// Option configures a Signal.
type Option func(*Signal)

// WithScheduler runs drain rechecks through the given scheduler instead of
// a bare goroutine. Hooked up to the task loop, this makes the
// zero-crossing check a discrete turn that runs after any already-queued
// work, so a read chain that registers its next read from a queued task is
// never cut short.
func WithScheduler(post func(fn func())) Option {
	return func(s *Signal) { s.schedule = post }
}

// New returns an unarmed signal. Callers must Arm it once the work that
// registers reads has been scheduled; arming earlier lets the initial
// zero-crossing check run before the first read exists and fire Ready for a
// render that was about to track reads.
func New(opts ...Option) *Signal {
	s := &Signal{ready: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.schedule == nil {
		s.schedule = func(fn func()) {
			go func() {
				// Give goroutines unblocked by the settling read a chance
				// to register their follow-up reads first.
				runtime.Gosched()
				fn()
			}()
		}
	}
	return s
}

// Arm schedules the initial zero-crossing check, so a render that tracks no
// reads at all resolves Ready promptly. Arm after the read-registering work
// is queued.
func (s *Signal) Arm() {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	s.schedule(func() { s.recheck(gen) })
}

// BeginRead registers one outstanding read and returns the function that
// settles it. The read counts as settled on success or failure alike; the
// signal only cares that the cache write finished, not how.
func (s *Signal) BeginRead() (end func()) {
	s.mu.Lock()
	if s.closed {
		// A read registered after the gate fired is a contract violation of
		// the caller (reads must all be discoverable before drain), but it
		// is indistinguishable from a benign race at this level; ignore it.
		s.mu.Unlock()
		return func() {}
	}
	s.pending++
	s.generation++
	s.everTracked = true
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(s.settleOne)
	}
}

// Track registers a read represented by a channel that is closed when the
// read settles.
func (s *Signal) Track(settled <-chan struct{}) {
	end := s.BeginRead()
	go func() {
		<-settled
		end()
	}()
}

func (s *Signal) settleOne() {
	s.mu.Lock()
	s.pending--
	if s.pending < 0 {
		panic("cachesignal: read settled more times than registered")
	}
	drained := s.pending == 0
	gen := s.generation
	s.mu.Unlock()

	if drained {
		s.schedule(func() { s.recheck(gen) })
	}
}

// recheck fires Ready only if no read was registered since the apparent
// drain at generation gen.
func (s *Signal) recheck(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending > 0 || s.generation != gen {
		return
	}
	s.closed = true
	close(s.ready)
}

// HasPendingReads reports synchronously whether any tracked read is still
// outstanding. Orchestration consults this before every stage advance: a
// pending read crossing a stage boundary would expose inconsistent partial
// cache state.
func (s *Signal) HasPendingReads() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Ready returns a channel closed once the cache-fill phase is complete. It
// is idempotent and never closes while HasPendingReads is true.
func (s *Signal) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the signal is ready or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
