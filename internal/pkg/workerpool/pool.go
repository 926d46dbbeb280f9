// Package workerpool provides a fixed-capacity task pool used as the
// global admission-control mechanism for outbound explorer requests.
// Every per-chain and per-token-kind fetch is submitted here, so the
// number of in-flight fetches across the whole fleet never exceeds the
// pool capacity, protecting third-party rate limits.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently running tasks. The zero value is
// not usable; construct instances with New.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New creates a Pool allowing at most capacity tasks to run at once.
// A capacity below 1 is treated as 1.
func New(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}

	return &Pool{
		sem: semaphore.NewWeighted(int64(capacity)),
	}
}

// Go acquires a pool slot (blocking until one is free or ctx is canceled)
// and runs task on its own goroutine, releasing the slot when the task
// returns. The task receives ctx and must honor its cancellation.
//
// Go returns ctx.Err() without running the task if the context ends while
// waiting for a slot.
func (p *Pool) Go(ctx context.Context, task func(ctx context.Context)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		task(ctx)
	}()

	return nil
}

// Wait blocks until every task admitted so far has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
