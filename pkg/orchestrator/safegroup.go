package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/masonry-build/masonry/pkg/logger"
)

// safeGroup wraps errgroup.Group with panic recovery so a misbehaving
// build-type handler cannot take down the whole workspace run.
type safeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

func newSafeGroup(ctx context.Context, log logger.Logger) (*safeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &safeGroup{group: g, logger: log}, ctx
}

// Go runs fn in a new goroutine, converting panics to errors
func (sg *safeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()
		return fn()
	})
}

// SetLimit bounds the number of concurrent goroutines
func (sg *safeGroup) SetLimit(n int) {
	sg.group.SetLimit(n)
}

// Wait blocks until all goroutines have completed
func (sg *safeGroup) Wait() error {
	return sg.group.Wait()
}
