package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datametry/edr/pkg/scheduler"
	"github.com/stretchr/testify/require"
)

func TestRunForever_RunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	r := scheduler.RunnerFunc{N: "first", Fn: func(ctx context.Context) error {
		calls.Add(1)
		cancel()
		return nil
	}}

	done := make(chan struct{})
	go func() {
		scheduler.RunForever(ctx, time.Hour, r)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "RunForever did not return after cancel")
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestRunForever_RunsEveryInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	r := scheduler.RunnerFunc{N: "tick", Fn: func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	}}

	scheduler.RunForever(ctx, 5*time.Millisecond, r)
	require.Equal(t, int32(3), calls.Load())
}

func TestRunForever_ErrorsDoNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []string
	failing := scheduler.RunnerFunc{N: "failing", Fn: func(ctx context.Context) error {
		order = append(order, "failing")
		return errors.New("test error")
	}}
	next := scheduler.RunnerFunc{N: "next", Fn: func(ctx context.Context) error {
		order = append(order, "next")
		if len(order) >= 4 {
			cancel()
		}
		return nil
	}}

	scheduler.RunForever(ctx, 5*time.Millisecond, failing, next)
	require.Equal(t, []string{"failing", "next", "failing", "next"}, order)
}
