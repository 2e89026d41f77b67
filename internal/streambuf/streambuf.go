// Package streambuf accumulates a render's byte stream into cumulative
// per-stage buffers. A chunk belongs to every bucket whose stage bound it
// arrived at or before: a chunk arriving during Runtime lands in the
// runtime and dynamic buffers, a chunk arriving at EarlyStatic in all
// three. The buffers are what gets cached at each fidelity level.
package streambuf

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/vk/renderloop/internal/stage"
)

// Buffers holds the cumulative per-stage output of one render.
type Buffers struct {
	// Static holds chunks that arrived at or before the Static stage.
	Static []byte
	// Runtime holds chunks that arrived at or before the Runtime stage.
	Runtime []byte
	// Dynamic holds every chunk of the render.
	Dynamic []byte
	// Dropped counts chunks discarded after abandonment.
	Dropped int
}

// Accumulator buckets incoming chunks by the controller's current stage at
// time of arrival.
type Accumulator struct {
	ctl *stage.Controller

	mu      sync.Mutex
	static  bytes.Buffer
	runtime bytes.Buffer
	dynamic bytes.Buffer
	dropped int
	done    chan struct{}
}

// NewAccumulator returns an accumulator bucketing against ctl.
func NewAccumulator(ctl *stage.Controller) *Accumulator {
	return &Accumulator{ctl: ctl, done: make(chan struct{})}
}

// Consume drains chunks until the channel closes, bucketing each chunk as
// it arrives. It is meant to run on its own goroutine against an unbuffered
// channel: the receive loop only returns to the channel after bucketing the
// previous chunk, so once a later send completes, every earlier chunk is
// known to be bucketed. Emitters that need that guarantee before the next
// stage advance send a zero-length fence chunk after their payload.
func (a *Accumulator) Consume(chunks <-chan []byte) {
	defer close(a.done)
	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		a.add(chunk)
	}
}

// add buckets one chunk via stage-ordered fallthrough.
func (a *Accumulator) add(chunk []byte) {
	current := a.ctl.Current()

	a.mu.Lock()
	defer a.mu.Unlock()

	switch current {
	case stage.Abandoned:
		// The render will be discarded; so is its output.
		a.dropped++
		return
	case stage.Before:
		panic(fmt.Sprintf("streambuf: chunk of %d bytes arrived before rendering started", len(chunk)))
	}

	if current <= stage.Static {
		a.static.Write(chunk)
	}
	if current <= stage.Runtime {
		a.runtime.Write(chunk)
	}
	a.dynamic.Write(chunk)
}

// Wait blocks until the chunk channel has been fully drained.
func (a *Accumulator) Wait() {
	<-a.done
}

// Buffers returns a snapshot of the accumulated buckets.
func (a *Accumulator) Buffers() Buffers {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Buffers{
		Static:  bytes.Clone(a.static.Bytes()),
		Runtime: bytes.Clone(a.runtime.Bytes()),
		Dynamic: bytes.Clone(a.dynamic.Bytes()),
		Dropped: a.dropped,
	}
}
