package encoder

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/instruction"
)

// ErrGateClosed is returned by Run once Close has been called.
var ErrGateClosed = errors.New("encoder gate closed")

// Gate admits one encoder run at a time. Callers queue on Run; once a run
// is dispatched it is detached from the caller's cancellation and always
// finishes, so the slot is released exactly once.
type Gate struct {
	enc Encoder
	sem *semaphore.Weighted

	// mu orders inflight.Add against Close.
	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewGate(enc Encoder) *Gate {
	return &Gate{enc: enc, sem: semaphore.NewWeighted(1)}
}

type outcome struct {
	res Result
	err error
}

// Run waits for the slot, dispatches in, and waits for the result. If ctx
// ends first Run returns ctx.Err(); the dispatched run keeps going and its
// output is left in place for cleanup. After Close, Run fails with a
// resource failure wrapping ErrGateClosed.
func (g *Gate) Run(ctx context.Context, in instruction.Instruction) (Result, error) {
	if g.isClosed() {
		return Result{}, closedError()
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.sem.Release(1)
		return Result{}, closedError()
	}
	g.inflight.Add(1)
	g.mu.Unlock()

	done := make(chan outcome, 1)
	go func() {
		defer g.inflight.Done()
		defer g.sem.Release(1)
		res, err := g.enc.Execute(context.WithoutCancel(ctx), in)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Close stops admitting runs and waits for dispatched ones to finish.
// Callers still queued for the slot get ErrGateClosed.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.inflight.Wait()
}

func (g *Gate) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func closedError() error {
	return apperr.Resource("", "encoder is shutting down", ErrGateClosed)
}
