package sched

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrStopped = errors.New("sched: loop stopped")

// Loop is a real-time single-goroutine event loop. Timers are armed with
// time.AfterFunc and their callbacks are posted back onto the loop, so
// callbacks never run concurrently with each other or with work passed to Do.
type Loop struct {
	mu      sync.Mutex
	next    Handle
	pending map[Handle]*time.Timer

	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop. Call Run to start processing.
func NewLoop() *Loop {
	return &Loop{
		pending: make(map[Handle]*time.Timer),
		tasks:   make(chan func(), 64),
		done:    make(chan struct{}),
	}
}

// Run processes callbacks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Stop halts the loop and disarms every pending timer.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.done)
		l.mu.Lock()
		for h, t := range l.pending {
			t.Stop()
			delete(l.pending, h)
		}
		l.mu.Unlock()
	})
}

// ScheduleAfter arranges for fn to run on the loop after d.
func (l *Loop) ScheduleAfter(d time.Duration, fn func()) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	h := l.next
	l.pending[h] = time.AfterFunc(d, func() {
		l.post(func() {
			// still pending means nobody cancelled it in the meantime
			l.mu.Lock()
			_, ok := l.pending[h]
			delete(l.pending, h)
			l.mu.Unlock()
			if ok {
				fn()
			}
		})
	})
	return h
}

// Cancel drops a pending callback. Unknown or already fired handles are ignored.
func (l *Loop) Cancel(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.pending[h]; ok {
		t.Stop()
		delete(l.pending, h)
	}
}

// Pending reports how many callbacks are armed.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}
