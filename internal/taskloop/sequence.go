package taskloop

import (
	"github.com/vk/renderloop/internal/future"
)

// Step is one unit of a sequenced run. Steps must not block on work that is
// itself queued on the loop; they run on the loop goroutine.
type Step func() error

// Sequence schedules head and each step across consecutive turns of the
// loop: head runs in turn T, steps[0] in a later turn T', steps[1] after
// that, and so on. Tasks already queued when a step finishes run before the
// next step, so pending renderer work gets exactly one window between
// adjacent steps. That window is what the stage protocol's tick budget is
// defined against.
//
// The returned future settles with the value of the future head produced,
// but only after the final step has completed (and head's future has
// settled). If head or any step fails, the steps not yet scheduled are
// cancelled and the future is rejected with that error.
func Sequence[T any](l *Loop, head func() (*future.Future[T], error), steps ...Step) *future.Future[T] {
	out := future.New[T]()

	var inner *future.Future[T]

	var schedule func(i int)
	schedule = func(i int) {
		if i > len(steps) {
			// All steps done; adopt head's result once it settles.
			go func() {
				<-inner.Done()
				v, err, _ := inner.Peek()
				if err != nil {
					out.Reject(err)
					return
				}
				out.Resolve(v)
			}()
			return
		}
		name := "sequence.step"
		if i == 0 {
			name = "sequence.head"
		}
		l.Post(name, func() {
			var err error
			if i == 0 {
				inner, err = head()
			} else {
				err = steps[i-1]()
			}
			if err != nil {
				out.Reject(err)
				return
			}
			schedule(i + 1)
		})
	}
	schedule(0)

	return out
}
