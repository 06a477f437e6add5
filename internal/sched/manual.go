package sched

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a virtual clock. Nothing fires until Advance is called, which
// makes animation sequences reproducible in tests and lets simulations run
// a whole batch without waiting.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	next  Handle
	queue []*timer

	// exec serializes callbacks with work submitted through Do.
	exec sync.Mutex
}

type timer struct {
	h  Handle
	at time.Duration
	fn func()
}

func NewManual() *Manual { return &Manual{} }

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) ScheduleAfter(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.next++
	t := &timer{h: m.next, at: m.now + d, fn: fn}
	// keep the queue sorted by due time; equal times keep schedule order
	i := sort.Search(len(m.queue), func(i int) bool { return m.queue[i].at > t.at })
	m.queue = append(m.queue, nil)
	copy(m.queue[i+1:], m.queue[i:])
	m.queue[i] = t
	return t.h
}

func (m *Manual) Cancel(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.queue {
		if t.h == h {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// Pending reports how many callbacks are queued.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Advance moves the clock forward by d, firing every callback that becomes
// due, including ones scheduled by callbacks during the advance. It returns
// the number of callbacks fired.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 || m.queue[0].at > target {
			m.now = target
			m.mu.Unlock()
			return fired
		}
		t := m.queue[0]
		m.queue = m.queue[1:]
		m.now = t.at
		m.mu.Unlock()

		m.exec.Lock()
		t.fn()
		m.exec.Unlock()
		fired++
	}
}

// RunUntilIdle fires callbacks until the queue is empty or limit callbacks
// have fired. It returns the number fired.
func (m *Manual) RunUntilIdle(limit int) int {
	fired := 0
	for fired < limit {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			break
		}
		due := m.queue[0].at - m.now
		m.mu.Unlock()
		fired += m.advanceOne(due)
	}
	return fired
}

func (m *Manual) advanceOne(due time.Duration) int {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return 0
	}
	t := m.queue[0]
	m.queue = m.queue[1:]
	m.now += due
	m.mu.Unlock()

	m.exec.Lock()
	t.fn()
	m.exec.Unlock()
	return 1
}

// Do runs fn immediately, serialized with fired callbacks.
func (m *Manual) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.exec.Lock()
	defer m.exec.Unlock()
	fn()
	return nil
}
