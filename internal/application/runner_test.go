package application

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRunnerRecoversPanickingTask(t *testing.T) {
	runner := NewRunner(context.Background(), zerolog.Nop())
	var ran atomic.Bool

	runner.Go("boom", func(context.Context) { panic("boom") })
	runner.Go("ok", func(context.Context) { ran.Store(true) })
	runner.Wait()

	assert.True(t, ran.Load())
}

func TestRunnerCloseCancelsTasks(t *testing.T) {
	runner := NewRunner(context.Background(), zerolog.Nop())
	var cancelled atomic.Bool

	runner.Go("blocked", func(ctx context.Context) {
		<-ctx.Done()
		cancelled.Store(true)
	})
	runner.Close()

	assert.True(t, cancelled.Load())
	assert.Error(t, runner.Context().Err())
}
