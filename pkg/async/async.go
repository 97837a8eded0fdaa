package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Future is the eventual result of a call started with Go.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Go runs fn in a new goroutine. A panic in fn completes the future with an
// error instead of crashing the process.
func Go[U any](ctx context.Context, fn func(context.Context) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("async: panic: %v", r)
			}
		}()

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()

	return f
}

// Await blocks until the call returns.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext blocks until the call returns or ctx is done. The call itself
// keeps running in the latter case.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitTimeout is AwaitContext with a relative deadline.
func (f *Future[U]) AwaitTimeout(d time.Duration) (U, error) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-f.done:
		return f.result, f.err
	case <-t.C:
		var zero U
		return zero, ErrTimeout
	}
}

// Done reports whether the call has returned.
func (f *Future[U]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// WaitAll waits for every future, even after one has failed. Results keep
// the order of futures; the returned error joins all failures.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var errs []error

	for i, f := range futures {
		res, err := f.Await()
		results[i] = res
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}
