package dynamic

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/renderloop/internal/future"
)

// ErrHanging is the cause carried by futures produced by Hanging once their
// owning signal aborts. It is expected and ignorable at the render's top
// level, but propagates like any error to code that awaits the value
// outside the render's own handling.
var ErrHanging = errors.New("value can never resolve in a static context")

// Hanging returns a future for a value that cannot exist in a static
// context. It never resolves; it rejects only once ctx, the render-lifetime
// signal, is cancelled, so nothing awaiting it outlives the render.
func Hanging[T any](ctx context.Context, expression string) *future.Future[T] {
	f := future.New[T]()
	context.AfterFunc(ctx, func() {
		f.Reject(fmt.Errorf("%s: %w", expression, ErrHanging))
	})
	return f
}
