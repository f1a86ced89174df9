package navauth

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Task is a unit of work executed on the Loop.
type Task func()

// Loop is a cooperative, single-threaded task runner. Tasks execute one at a
// time in FIFO order; a task posted while another runs executes in a later
// turn. All session writes and navigation commits happen on the loop, so
// readers never see a half-applied transition.
type Loop struct {
	mu     sync.Mutex
	turn   sync.Mutex
	tasks  *queue.Queue
	wake   chan struct{}
	closed bool
	turns  atomic.Uint64
	logger Logger
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used to report task panics.
func WithLoopLogger(logger Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop returns an idle loop. Drive it with Run or RunPending.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		tasks:  queue.New(),
		wake:   make(chan struct{}, 1),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Post enqueues task to run in a future turn.
func (l *Loop) Post(task Task) error {
	if task == nil {
		return nil
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.tasks.Add(task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Defer schedules a single-shot task that runs after the current synchronous
// turn completes. The returned function cancels it if it has not run yet.
func (l *Loop) Defer(task Task) (cancel func(), err error) {
	if task == nil {
		return func() {}, nil
	}

	var once sync.Once
	run := func() {
		once.Do(task)
	}
	if err := l.Post(run); err != nil {
		return func() {}, err
	}
	return func() { once.Do(func() {}) }, nil
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

// Turns returns how many tasks have executed.
func (l *Loop) Turns() uint64 {
	return l.turns.Load()
}

// RunPending executes queued tasks, including tasks they enqueue, until the
// queue is empty. It returns the number of tasks executed. Must not be
// called from inside a task.
func (l *Loop) RunPending() int {
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n
		}
		l.execute(task)
		n++
	}
}

// Run drives the loop on the calling goroutine until ctx is done or the
// loop is closed. Remaining tasks are drained before a close returns.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			l.RunPending()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Close stops accepting tasks and wakes Run so it can return.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tasks.Length() == 0 {
		return nil, false
	}
	return l.tasks.Remove().(Task), true
}

func (l *Loop) execute(task Task) {
	l.turn.Lock()
	defer l.turn.Unlock()
	defer func() {
		l.turns.Add(1)
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
