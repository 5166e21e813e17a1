package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
)

// ErrBusy is returned by StartErr while a request is in flight.
var ErrBusy = errors.New("pipeline: request already in flight")

// Async runs Process off the caller's goroutine with at most one request
// in flight. Poll is non-blocking; Cancel drops the pending result while
// the work itself runs to completion.
type Async struct {
	p     *Pipeline
	tasks pond.ResultPool[Result]

	mu      sync.Mutex
	pending pond.Result[Result]
}

// NewAsync returns a wrapper with its own single-worker task pool, so a
// running cycle never competes with its own stage tasks for a worker.
func (p *Pipeline) NewAsync() *Async {
	return &Async{p: p, tasks: pond.NewResultPool[Result](1)}
}

// Start submits req and reports whether it was accepted.
func (a *Async) Start(req Request) bool {
	return a.StartErr(req) == nil
}

func (a *Async) StartErr(req Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		return ErrBusy
	}
	a.pending = a.tasks.Submit(func() Result {
		res, err := a.p.Process(context.Background(), req)
		if err != nil {
			res.Err = err
		}
		return res
	})
	return nil
}

// Poll returns the finished result, or false while running or idle.
func (a *Async) Poll() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return Result{}, false
	}
	select {
	case <-a.pending.Done():
	default:
		return Result{}, false
	}
	res, err := a.pending.Wait()
	a.pending = nil
	if err != nil {
		res.Err = fmt.Errorf("pipeline task: %w", err)
	}
	return res, true
}

// Cancel forgets the in-flight request, if any.
func (a *Async) Cancel() {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}

func (a *Async) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Close waits for queued work and stops the task pool.
func (a *Async) Close() { a.tasks.StopAndWait() }
