package sched

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestManualFiresInDueOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.ScheduleAfter(30*time.Millisecond, func() { got = append(got, "c") })
	m.ScheduleAfter(10*time.Millisecond, func() { got = append(got, "a") })
	m.ScheduleAfter(10*time.Millisecond, func() { got = append(got, "b") })

	if n := m.Advance(9 * time.Millisecond); n != 0 {
		t.Fatalf("fired %d before due", n)
	}
	if n := m.Advance(100 * time.Millisecond); n != 3 {
		t.Fatalf("fired %d want 3", n)
	}
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("order=%v", got)
	}
	if m.Now() != 109*time.Millisecond {
		t.Fatalf("now=%v", m.Now())
	}
}

func TestManualChainedCallbacks(t *testing.T) {
	m := NewManual()
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			m.ScheduleAfter(10*time.Millisecond, tick)
		}
	}
	m.ScheduleAfter(10*time.Millisecond, tick)
	m.Advance(45 * time.Millisecond)
	if ticks != 4 {
		t.Fatalf("ticks=%d want 4", ticks)
	}
	m.RunUntilIdle(100)
	if ticks != 5 || m.Pending() != 0 {
		t.Fatalf("ticks=%d pending=%d", ticks, m.Pending())
	}
	if m.Now() != 50*time.Millisecond {
		t.Fatalf("now=%v", m.Now())
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual()
	fired := false
	h := m.ScheduleAfter(time.Millisecond, func() { fired = true })
	m.Cancel(h)
	m.Cancel(h)
	m.Cancel(Handle(999))
	m.Advance(time.Second)
	if fired {
		t.Fatalf("cancelled callback fired")
	}
}

func TestManualDo(t *testing.T) {
	m := NewManual()
	ran := false
	if err := m.Do(context.Background(), func() { ran = true }); err != nil || !ran {
		t.Fatalf("ran=%v err=%v", ran, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Do(ctx, func() {}); err == nil {
		t.Fatalf("cancelled context must error")
	}
}
