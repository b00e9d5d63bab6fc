package pool

import (
	"context"
	"time"
)

// acquireContext bounds ctx with d unless it already carries a deadline.
// A negative d disables the bound.
func acquireContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline || d < 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
