package application

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// Runner executes background tasks off the foreground tick. Tasks never
// propagate panics; they are logged and the task is dropped.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func NewRunner(parent context.Context, logger zerolog.Logger) *Runner {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	return &Runner{ctx: ctx, cancel: cancel, logger: logger}
}

// Go starts fn and returns immediately.
func (r *Runner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().
					Str("task", name).
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Msg("background task panicked")
			}
		}()

		fn(r.ctx)
	}()
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels outstanding tasks and waits for them.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
