// Package dynamic records uses of request-time-only APIs observed during a
// render that was expected to be static. The orchestrator merges the
// records of the data and HTML passes to classify the route; validation and
// error reporting consume the structured access list.
package dynamic

import (
	"errors"
	"fmt"
	"sync"
)

// Access describes one observed use of a dynamic API.
type Access struct {
	// Expression is the API that was touched, e.g. "cookies" or "time.Now".
	Expression string
	// Stack optionally locates the access in the component tree.
	Stack string
}

// Tracker accumulates dynamic accesses for one render pass. Safe for
// concurrent use.
type Tracker struct {
	mu       sync.Mutex
	accesses []Access
	syncExpr string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record notes a dynamic access.
func (t *Tracker) Record(expression, stack string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accesses = append(t.accesses, Access{Expression: expression, Stack: stack})
}

// RecordSync notes a dynamic access performed through synchronous I/O. The
// expression is remembered separately: sync accesses abort the render
// immediately rather than waiting out the tick budget.
func (t *Tracker) RecordSync(expression, stack string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accesses = append(t.accesses, Access{Expression: expression, Stack: stack})
	if t.syncExpr == "" {
		t.syncExpr = expression
	}
}

// SyncExpression returns the first synchronously-accessed dynamic
// expression, or "".
func (t *Tracker) SyncExpression() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syncExpr
}

// Accesses returns a snapshot of the recorded accesses.
func (t *Tracker) Accesses() []Access {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Access, len(t.accesses))
	copy(out, t.accesses)
	return out
}

// Empty reports whether nothing dynamic was observed.
func (t *Tracker) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.accesses) == 0
}

// Consume drains other into t. Used to merge the HTML pass's accesses into
// the data pass's record before classification; other is left empty.
func (t *Tracker) Consume(other *Tracker) {
	if other == nil || other == t {
		return
	}
	other.mu.Lock()
	moved := other.accesses
	movedSync := other.syncExpr
	other.accesses = nil
	other.syncExpr = ""
	other.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.accesses = append(t.accesses, moved...)
	if t.syncExpr == "" {
		t.syncExpr = movedSync
	}
}

// UsageError marks an invalid use of a dynamic API: one that can never be
// satisfied in a prerender context regardless of phase. It is fatal for the
// enclosing request.
type UsageError struct {
	Route      string
	Expression string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("route %q used %s inside a context that can never be dynamic", e.Route, e.Expression)
}

// IsUsageError reports whether err carries an invalid-dynamic-usage error.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
