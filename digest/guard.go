package digest

import (
	"context"
	"fmt"
	"sync"
)

// DefaultQueueSize is the guard queue capacity used when none is configured.
const DefaultQueueSize = 25

// Guard serializes calls into a function that is not safe for concurrent
// use. Calls are admitted into a bounded queue and executed one at a time,
// in admission order, by a single worker goroutine.
//
// Callers block while the queue is full rather than being rejected; the
// capacity is the only throttle.
type Guard[Req, Resp any] struct {
	fn      func(context.Context, Req) (Resp, error)
	release func(Resp)
	jobs    chan guardJob[Req, Resp]
	closing chan struct{}
	exited  chan struct{}
	once    sync.Once
}

type guardJob[Req, Resp any] struct {
	ctx    context.Context
	req    Req
	result chan guardResult[Resp]
}

type guardResult[Resp any] struct {
	resp Resp
	err  error
}

// NewGuard starts a guard in front of fn. A capacity of zero or less selects
// DefaultQueueSize. The worker runs until Close is called.
func NewGuard[Req, Resp any](capacity int, fn func(context.Context, Req) (Resp, error)) *Guard[Req, Resp] {
	return NewReleasingGuard(capacity, fn, nil)
}

// NewReleasingGuard is NewGuard with a release function. release is called
// with every successful response whose caller stopped waiting, because its
// context was done before the response was delivered.
func NewReleasingGuard[Req, Resp any](capacity int, fn func(context.Context, Req) (Resp, error), release func(Resp)) *Guard[Req, Resp] {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}

	g := &Guard[Req, Resp]{
		fn:      fn,
		release: release,
		jobs:    make(chan guardJob[Req, Resp], capacity),
		closing: make(chan struct{}),
		exited:  make(chan struct{}),
	}

	go g.run()

	return g
}

// Do queues req and waits for the guarded function to handle it.
//
// It returns ctx.Err() when ctx is done before the result is available and
// ErrGuardClosed when the guard is closed before req is handled.
func (g *Guard[Req, Resp]) Do(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	job := guardJob[Req, Resp]{
		ctx:    ctx,
		req:    req,
		result: make(chan guardResult[Resp], 1),
	}

	select {
	case <-g.closing:
		return zero, ErrGuardClosed
	default:
	}

	select {
	case g.jobs <- job:
	case <-g.closing:
		return zero, ErrGuardClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res.resp, res.err
	case <-ctx.Done():
		g.abandon(job)
		return zero, ctx.Err()
	case <-g.exited:
		select {
		case res := <-job.result:
			return res.resp, res.err
		default:
			return zero, ErrGuardClosed
		}
	}
}

// abandon hands the late result of job, if one arrives, to release.
func (g *Guard[Req, Resp]) abandon(job guardJob[Req, Resp]) {
	if g.release == nil {
		return
	}

	go func() {
		select {
		case res := <-job.result:
			g.releaseResult(res)
		case <-g.exited:
			select {
			case res := <-job.result:
				g.releaseResult(res)
			default:
			}
		}
	}()
}

func (g *Guard[Req, Resp]) releaseResult(res guardResult[Resp]) {
	if res.err == nil {
		g.release(res.resp)
	}
}

// Ready reports whether a call would be admitted without waiting.
func (g *Guard[Req, Resp]) Ready() error {
	select {
	case <-g.closing:
		return ErrGuardClosed
	default:
	}

	if len(g.jobs) >= cap(g.jobs) {
		return ErrGuardFull
	}

	return nil
}

// Close stops the worker after the call in progress, if any. Queued and
// subsequent calls fail with ErrGuardClosed. Close is idempotent.
func (g *Guard[Req, Resp]) Close() {
	g.once.Do(func() {
		close(g.closing)
	})
}

func (g *Guard[Req, Resp]) run() {
	defer close(g.exited)

	for {
		select {
		case <-g.closing:
			return
		default:
		}

		select {
		case <-g.closing:
			return
		case job := <-g.jobs:
			job.result <- g.call(job)
		}
	}
}

func (g *Guard[Req, Resp]) call(job guardJob[Req, Resp]) (res guardResult[Resp]) {
	if err := job.ctx.Err(); err != nil {
		res.err = err
		return res
	}

	defer func() {
		if v := recover(); v != nil {
			res.err = fmt.Errorf("%w: %v", ErrGuardPanic, v)
		}
	}()

	res.resp, res.err = g.fn(job.ctx, job.req)

	return res
}
