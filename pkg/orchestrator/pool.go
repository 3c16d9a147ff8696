package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/frame-analyzer/pkg/types"
)

// job is one unit of work: a frame and its submission index
type job struct {
	index int
	frame types.Frame
}

// workerPool runs submitted jobs on a fixed number of worker goroutines.
// At most size jobs execute at any instant.
type workerPool struct {
	size int
	jobs chan job
	g    *errgroup.Group
	ctx  context.Context
}

// newWorkerPool starts size workers calling handle for every submitted job.
// A handler error stops the pool; Submit then fails and Wait returns the error.
func newWorkerPool(ctx context.Context, size int, handle func(ctx context.Context, j job) error) *workerPool {
	if size < 1 {
		size = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	p := &workerPool{
		size: size,
		jobs: make(chan job, size),
		g:    g,
		ctx:  gctx,
	}

	for i := 0; i < size; i++ {
		g.Go(func() error {
			for j := range p.jobs {
				if err := handle(gctx, j); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return p
}

// Size returns the number of workers
func (p *workerPool) Size() int {
	return p.size
}

// Submit queues j, blocking while the queue is full
func (p *workerPool) Submit(j job) error {
	select {
	case <-p.ctx.Done():
		return context.Cause(p.ctx)
	default:
	}
	select {
	case p.jobs <- j:
		return nil
	case <-p.ctx.Done():
		return context.Cause(p.ctx)
	}
}

// Wait closes the queue and blocks until every worker has exited
func (p *workerPool) Wait() error {
	close(p.jobs)
	return p.g.Wait()
}
