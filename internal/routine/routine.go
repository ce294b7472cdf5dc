// Package routine runs the cache's background work (fetches, interval
// refetches, mutation side effects) in goroutines that survive panics.
package routine

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/pkg/logger"
)

// Runner provides safe goroutine execution with panic recovery
type Runner interface {
	// GoNamed executes a named function in a new goroutine with panic recovery
	GoNamed(name string, fn func())

	// GoNamedWithContext executes a named function with context in a new goroutine
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Wait waits for all goroutines started by this runner to complete
	Wait()
}

type defaultRunner struct {
	log logger.Logger
	wg  sync.WaitGroup
}

// New creates a new Runner with the given logger
func New(log logger.Logger) Runner {
	return &defaultRunner{log: logger.OrNop(log)}
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(name)
		fn()
	}()
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(name)
		fn(ctx)
	}()
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

func (r *defaultRunner) recover(name string) {
	if rec := recover(); rec != nil {
		r.log.Error("goroutine panicked",
			zap.String("routine", name),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
		)
	}
}

// Call runs fn and converts a panic into an error wrapping ErrPanicRecovered,
// so callers blocked on fn's result are always released.
func Call[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrPanic(rec)
		}
	}()
	return fn()
}
