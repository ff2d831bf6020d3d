package timeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TaskDispatch runs a frame's preprocessing tasks on a bounded number of goroutines.
type TaskDispatch struct {
	ctx context.Context
	g   *errgroup.Group
}

// NewTaskDispatch returns a dispatcher that runs at most workers tasks at once. If workers is not positive,
// GOMAXPROCS is used. Tasks that haven't started when ctx is canceled are skipped.
func NewTaskDispatch(ctx context.Context, workers int) *TaskDispatch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	return &TaskDispatch{ctx: ctx, g: g}
}

// Queue runs fn on a worker. It blocks while all workers are busy.
func (td *TaskDispatch) Queue(fn func()) {
	td.g.Go(func() error {
		if err := td.ctx.Err(); err != nil {
			return err
		}
		fn()
		return nil
	})
}

// Wait waits for all queued tasks to finish. It returns the context's error if tasks were skipped.
func (td *TaskDispatch) Wait() error {
	return td.g.Wait()
}
