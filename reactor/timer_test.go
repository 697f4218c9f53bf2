package reactor

import (
	"testing"
	"time"
)

func TestWheelFiresInDeadlineOrder(t *testing.T) {
	w := NewWheel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	var order []string
	w.Add(3*time.Second, func() { order = append(order, "c") })
	w.Add(1*time.Second, func() { order = append(order, "a") })
	w.Add(2*time.Second, func() { order = append(order, "b") })

	w.now = func() time.Time { return base.Add(5 * time.Second) }
	w.RunDue()

	if len(order) != 3 {
		t.Fatalf("expected 3 fired timers, got %d", len(order))
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected order a,b,c; got %v", order)
	}
}

func TestWheelEqualDeadlinesFireInInsertionOrder(t *testing.T) {
	w := NewWheel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		w.Add(time.Second, func() { order = append(order, i) })
	}

	w.now = func() time.Time { return base.Add(2 * time.Second) }
	w.RunDue()

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("expected insertion order [0 1 2], got %v", order)
	}
}

func TestWheelCancel(t *testing.T) {
	w := NewWheel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	fired := false
	id := w.Add(time.Second, func() { fired = true })
	w.Cancel(id)

	w.now = func() time.Time { return base.Add(time.Hour) }
	w.RunDue()

	if fired {
		t.Error("expected cancelled timer to not fire")
	}
}

func TestWheelRunDueNotYetDue(t *testing.T) {
	w := NewWheel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	fired := false
	w.Add(time.Minute, func() { fired = true })
	w.RunDue()

	if fired {
		t.Error("expected timer not due yet to not fire")
	}
	if w.Len() != 1 {
		t.Errorf("expected 1 pending timer, got %d", w.Len())
	}
}

func TestWheelReentrantAddFiresWithinSamePass(t *testing.T) {
	w := NewWheel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	calls := 0
	var tick func()
	tick = func() {
		calls++
		if calls < 2 {
			w.Add(0, tick)
		}
	}
	w.Add(0, tick)
	w.RunDue()

	if calls != 2 {
		t.Errorf("expected reentrant Add to fire within the same RunDue pass, got %d calls", calls)
	}
}

func TestWheelFlush(t *testing.T) {
	w := NewWheel()
	w.Add(time.Second, func() {})
	w.Add(time.Second, func() {})
	w.Flush()
	if w.Len() != 0 {
		t.Errorf("expected 0 timers after Flush, got %d", w.Len())
	}
}
