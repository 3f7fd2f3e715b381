package scheduler

import (
	"context"
	"time"

	"github.com/datametry/edr/pkg/logger"
)

type Runner interface {
	Run(ctx context.Context) error
	Name() string
}

// RunForever runs the given runners once immediately and then every interval until ctx is done.
// The runners are ran sequentially in a single goroutine, so a run that takes longer than the
// interval delays the next tick instead of overlapping with it.  Runner errors are logged and do
// not stop the loop.
//
// Example usage:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	RunForever(ctx, time.Hour, monitor)
func RunForever(ctx context.Context, interval time.Duration, runners ...Runner) {
	runAll(ctx, runners)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runAll(ctx, runners)
		}
	}
}

func runAll(ctx context.Context, runners []Runner) {
	for _, r := range runners {
		if ctx.Err() != nil {
			return
		}
		if err := r.Run(ctx); err != nil {
			logger.Errorf("Failed to run Runner %s: %v", r.Name(), err)
		}
	}
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc struct {
	N  string
	Fn func(ctx context.Context) error
}

func (r RunnerFunc) Run(ctx context.Context) error { return r.Fn(ctx) }
func (r RunnerFunc) Name() string                  { return r.N }
