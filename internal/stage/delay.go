package stage

import (
	"context"
	"fmt"

	"github.com/vk/renderloop/internal/future"
)

// DelayUntil returns a future that resolves to value only once the
// controller reaches s. It is how request-scoped data (cookies, headers,
// params) is withheld from the render until the stage that deserves it: the
// renderer observes the value appearing at a labeled phase boundary rather
// than immediately.
//
// The label names the delayed value in interrupt diagnostics. If the
// controller is abandoned before s is reached the future is rejected with
// the controller's InterruptError.
func DelayUntil[T any](ctx context.Context, c *Controller, s Stage, label string, value T) *future.Future[T] {
	f := future.New[T]()
	go func() {
		if err := c.Wait(ctx, s); err != nil {
			f.Reject(fmt.Errorf("delayed value %q: %w", label, err))
			return
		}
		f.Resolve(value)
	}()
	return f
}
