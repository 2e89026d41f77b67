// Package stage implements the staged-rendering sequencer. A render moves
// through an ordered list of stages; request-scoped data is gated on stage
// promises so that it only resolves once the render has progressed far
// enough to deserve it.
package stage

import "fmt"

// Stage is a named point in the ordered render sequence.
type Stage int

// Ordered stages. A render's current stage is monotonically non-decreasing
// across these values.
const (
	Before Stage = iota
	EarlyStatic
	Static
	EarlyRuntime
	Runtime
	Dynamic
)

// Abandoned is a terminal sentinel: the render will not complete on this
// path and its output must be discarded. It is not ordered relative to the
// other stages and must never be passed to Advance or Wait.
const Abandoned Stage = -1

// firstAdvanceable and lastAdvanceable bound the stages a controller can be
// advanced to.
const (
	firstAdvanceable = EarlyStatic
	lastAdvanceable  = Dynamic
)

func (s Stage) String() string {
	switch s {
	case Before:
		return "before"
	case EarlyStatic:
		return "early-static"
	case Static:
		return "static"
	case EarlyRuntime:
		return "early-runtime"
	case Runtime:
		return "runtime"
	case Dynamic:
		return "dynamic"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// EnvironmentLabel returns the human-readable phase name external tooling
// tags render output with at this stage.
func (s Stage) EnvironmentLabel() string {
	switch s {
	case Before, EarlyStatic:
		return "Prerender"
	case Static:
		return "Prefetch"
	case EarlyRuntime:
		return "Prefetchable"
	default:
		return "Server"
	}
}
