package session

import (
	"testing"
	"time"

	"fixengine/reactor"
)

func TestWatchdogSendsHeartbeatAfterIdleOutbound(t *testing.T) {
	wheel := reactor.NewWheel()
	sent := 0
	wd := NewWatchdog(wheel, 10*time.Millisecond, func() { sent++ }, func() {}, func() {})
	wd.Start()
	defer wd.Stop()

	time.Sleep(30 * time.Millisecond)
	wheel.RunDue()

	if sent == 0 {
		t.Error("expected at least one heartbeat to fire after idle outbound period")
	}
}

func TestWatchdogSuppressesHeartbeatAfterRecentOutbound(t *testing.T) {
	wheel := reactor.NewWheel()
	sent := 0
	wd := NewWatchdog(wheel, 20*time.Millisecond, func() { sent++ }, func() {}, func() {})
	wd.Start()
	defer wd.Stop()

	time.Sleep(10 * time.Millisecond)
	wd.NoteOutbound()
	time.Sleep(15 * time.Millisecond)
	wheel.RunDue()

	if sent != 0 {
		t.Errorf("expected NoteOutbound to defer the heartbeat, but it fired %d times", sent)
	}
}

func TestWatchdogRequestsTestOnInboundSilence(t *testing.T) {
	wheel := reactor.NewWheel()
	testReqs := 0
	wd := NewWatchdog(wheel, 10*time.Millisecond, func() {}, func() { testReqs++ }, func() {})
	wd.Start()
	defer wd.Stop()

	time.Sleep(20 * time.Millisecond)
	wheel.RunDue()

	if testReqs == 0 {
		t.Error("expected a TestRequest after 1.5x heartbeat interval of inbound silence")
	}
}

func TestWatchdogNoteInboundResetsTestPending(t *testing.T) {
	wheel := reactor.NewWheel()
	testReqs := 0
	wd := NewWatchdog(wheel, 10*time.Millisecond, func() {}, func() { testReqs++ }, func() {})
	wd.Start()
	defer wd.Stop()

	time.Sleep(20 * time.Millisecond)
	wheel.RunDue()
	firstCount := testReqs

	wd.NoteInbound()
	if wd.testPending {
		t.Error("expected NoteInbound to clear testPending")
	}
	_ = firstCount
}

func TestWatchdogTimesOutAfterThreeIntervals(t *testing.T) {
	wheel := reactor.NewWheel()
	timedOut := false
	wd := NewWatchdog(wheel, 10*time.Millisecond, func() {}, func() {}, func() { timedOut = true })
	wd.Start()
	defer wd.Stop()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && !timedOut {
		wheel.RunDue()
		time.Sleep(5 * time.Millisecond)
	}

	if !timedOut {
		t.Error("expected watchdog timeout after 3x heartbeat interval of total silence")
	}
}

func TestWatchdogStopCancelsTimers(t *testing.T) {
	wheel := reactor.NewWheel()
	wd := NewWatchdog(wheel, time.Millisecond, func() {}, func() {}, func() {})
	wd.Start()
	wd.Stop()

	if wheel.Len() != 0 {
		t.Errorf("expected Stop to cancel both timers, got %d pending", wheel.Len())
	}
}
