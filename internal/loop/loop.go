// Package loop provides a single goroutine task queue.
//
// The session core uses it as its event loop: state transitions are posted
// as tasks and run one at a time in FIFO order, never inline in the caller.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when posting to a closed loop.
var ErrClosed = errors.New("loop closed")

// Loop runs posted tasks sequentially on one goroutine.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	started bool

	doneCh chan struct{}
}

// New creates a loop. Call Start or Run to begin processing.
func New() *Loop {
	l := &Loop{doneCh: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start runs the loop on a new goroutine.
func (l *Loop) Start() {
	go l.Run()
}

// Run processes tasks until Close is called and the queue is drained.
func (l *Loop) Run() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	defer close(l.doneCh)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(task)
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("loop task panicked")
		}
	}()
	task()
}

// Post enqueues task for a later turn. It never runs task inline.
// Returns false if the loop is closed.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	l.queue = append(l.queue, task)
	l.cond.Signal()

	return true
}

// Call posts task and waits for it to finish or for ctx to be done.
// If ctx ends first the task still runs later.
func (l *Loop) Call(ctx context.Context, task func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		task()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every task posted before the call has run.
func (l *Loop) Flush(ctx context.Context) error {
	return l.Call(ctx, func() {})
}

// Close stops accepting tasks, waits for queued tasks to run, then returns.
// Must not be called from a loop task.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.wait()
		return
	}
	l.closed = true
	started := l.started
	l.cond.Broadcast()
	l.mu.Unlock()

	if !started {
		go l.Run()
	}

	<-l.wait()
}

func (l *Loop) wait() <-chan struct{} {
	return l.doneCh
}
