package telemetry

import (
	"context"
	"errors"
	"time"
)

var ErrLoopStopped = errors.New("main loop stopped")

// Loop is the single main context. Network goroutines hand work over with
// Enqueue; Run executes it in FIFO order once per tick, after the tick hook.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	interval time.Duration
	tick     func(dt time.Duration)
}

func NewLoop(size int, interval time.Duration) *Loop {
	if size < 1 {
		size = 1
	}
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Loop{
		queue:    make(chan func(), size),
		done:     make(chan struct{}),
		interval: interval,
	}
}

// OnTick registers fn to run at the start of every tick. Call before Run.
func (l *Loop) OnTick(fn func(dt time.Duration)) {
	l.tick = fn
}

// Enqueue blocks while the queue is full.
func (l *Loop) Enqueue(ctx context.Context, work func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.queue <- work:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Pending returns how many work items are waiting.
func (l *Loop) Pending() int {
	return len(l.queue)
}

func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if l.tick != nil {
				l.tick(now.Sub(last))
			}
			last = now
			l.drain()
		}
	}
}

// drain runs only the work present at the start of the call, so producers
// cannot starve the tick.
func (l *Loop) drain() {
	n := len(l.queue)
	for i := 0; i < n; i++ {
		work := <-l.queue
		work()
	}
}
