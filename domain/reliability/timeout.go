package reliability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// ErrTimeout is returned when a budgeted operation overruns its budget. The
// caller treats it as degradation, not as an abort.
var ErrTimeout = errors.New("operation timed out")

// TimeoutGuard runs operations on a worker goroutine bounded by a time
// budget. On overrun the worker is abandoned with a cancelled context;
// cancellation is cooperative and best-effort.
type TimeoutGuard struct {
	logger *slog.Logger
}

// NewTimeoutGuard returns a TimeoutGuard logging through logger (may be nil).
func NewTimeoutGuard(logger *slog.Logger) *TimeoutGuard {
	return &TimeoutGuard{logger: logger}
}

// Execute runs op with a child context that expires after budget. It returns
// op's error when op finishes in time, ErrTimeout when the budget elapses
// first, or the parent context error on cancellation. A budget <= 0 runs op
// inline without a guard. Results must be captured by op before it returns;
// on timeout the caller must not read them.
func (g *TimeoutGuard) Execute(ctx context.Context, budget time.Duration, op func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if budget <= 0 {
		return op(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, budget)
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if g.logger != nil {
					g.logger.Error("guarded op panic", "error", r, "stack", string(debug.Stack()))
				}
				done <- fmt.Errorf("guarded op panic: %v", r)
			}
		}()
		done <- op(cctx)
	}()
	select {
	case err := <-done:
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrTimeout
		}
		return err
	case <-cctx.Done():
		cancel()
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			if g.logger != nil {
				g.logger.Debug("guarded op overran budget", "budget", budget)
			}
			return ErrTimeout
		}
		return ctx.Err()
	}
}
