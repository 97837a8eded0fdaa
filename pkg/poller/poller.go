// Package poller runs a function on a fixed interval until stopped.
//
// A Poller is an explicit start/stop handle around a single ticker. There is
// no backoff, jitter or retry limit: every tick is independent and a failing
// tick never stops the timer. Errors are logged at debug level and dropped.
//
// Each tick runs in its own goroutine with a context detached from the
// poller's cancellation, so Stop prevents future ticks but never aborts a call
// that is already in flight.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/stocksync/pkg/logger"
)

// Func is the work performed on every tick.
type Func func(ctx context.Context) error

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger used for swallowed tick errors.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithName labels log records with a component name.
func WithName(name string) Option {
	return func(p *Poller) {
		if name != "" {
			p.name = name
		}
	}
}

// Poller calls fn every interval while running.
type Poller struct {
	interval time.Duration
	fn       Func
	name     string
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped poller. It panics on a non-positive interval or a nil
// fn, both programming errors.
func New(interval time.Duration, fn Func, opts ...Option) *Poller {
	if interval <= 0 {
		panic("poller: interval must be positive")
	}
	if fn == nil {
		panic("poller: nil func")
	}

	p := &Poller{
		interval: interval,
		fn:       fn,
		name:     "poller",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins ticking. The first call happens one interval after Start.
// It returns false without side effects when the poller is already running.
// The poller also stops when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(loopCtx, p.done)
	return true
}

// Stop cancels future ticks. It returns false when the poller was not running.
func (p *Poller) Stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Running reports whether the poller is started. It turns false on its own
// once the context given to Start is cancelled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.release(done)
			return
		case <-ticker.C:
			go p.tick(context.WithoutCancel(ctx))
		}
	}
}

// release forgets the run owning done unless Stop or a later Start already
// replaced it.
func (p *Poller) release(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.cancel()
		p.cancel, p.done = nil, nil
	}
}

func (p *Poller) tick(ctx context.Context) {
	start := time.Now()
	if err := p.fn(ctx); err != nil {
		p.logger.DebugContext(ctx, "poll tick failed",
			logger.Component(p.name),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
	}
}
