// Package taskloop provides the discrete-turn scheduler the staged render
// protocol is sequenced on. A Loop owns a FIFO queue of tasks executed one
// at a time on a single goroutine; each dequeued task is one "turn", the
// analogue of a macrotask boundary. Stage transitions, renderer work, and
// cache fills all run as turns of the same loop, which is what makes the
// static/dynamic classification schedule-relative instead of wall-clock
// dependent: the outcome is identical regardless of machine load.
package taskloop

import (
	"sync"
)

type task struct {
	name string
	fn   func()
}

// Loop is a single-goroutine FIFO task executor. Post enqueues a task at
// the tail; tasks run in order, each as its own discrete turn. A Loop must
// be shut down with Close once no more tasks will be posted.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []task
	turns  uint64
	closed bool
	done   chan struct{}
}

// New starts a loop and returns it.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		l.turns++
		l.mu.Unlock()

		t.fn()
	}
}

// Post enqueues fn to run as its own turn after every task already queued.
// The name identifies the task in diagnostics. Posting to a closed loop
// discards the task and reports false: continuation chains of an already
// abandoned render may outlive the loop, and their remaining links are
// simply cancelled.
func (l *Loop) Post(name string, fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, task{name: name, fn: fn})
	l.cond.Signal()
	return true
}

// PostAfter enqueues fn to run after n additional turn boundaries beyond the
// usual one, by re-posting itself n times. It models work that settles only
// after a known number of scheduler ticks.
func (l *Loop) PostAfter(n int, name string, fn func()) {
	if n <= 0 {
		l.Post(name, fn)
		return
	}
	l.Post(name, func() {
		l.PostAfter(n-1, name, fn)
	})
}

// Turns returns the number of turns the loop has started.
func (l *Loop) Turns() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.turns
}

// Close drains the queue and stops the loop goroutine. Tasks already queued
// still run; later posts are discarded. Close blocks until the loop has
// exited.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Signal()
	}
	l.mu.Unlock()
	<-l.done
}
