package session

import (
	"time"

	"fixengine/reactor"
)

// Watchdog implements the heartbeat cadence spec.md §4.5.3/§8
// describes: emit Heartbeat when nothing else has gone out within
// HeartBtInt; emit TestRequest after 1.5×HeartBtInt of inbound
// silence; declare a timeout and disconnect after 3×HeartBtInt
// (spec.md §5 notes the source uses 3× for the disconnect threshold,
// not the 2× an earlier draft of this text implied).
type Watchdog struct {
	wheel      *reactor.Wheel
	heartBtInt time.Duration

	sendTimerID uint64
	recvTimerID uint64

	onSendDue    func()
	onTestReq    func()
	onTimeout    func()

	lastOutbound time.Time
	lastInbound  time.Time
	testPending  bool
}

// NewWatchdog wires a watchdog onto wheel. onSendDue is called when a
// Heartbeat should be emitted; onTestReq when a TestRequest should be
// emitted; onTimeout when the peer has been silent past 3×HeartBtInt.
func NewWatchdog(wheel *reactor.Wheel, heartBtInt time.Duration, onSendDue, onTestReq, onTimeout func()) *Watchdog {
	return &Watchdog{
		wheel:      wheel,
		heartBtInt: heartBtInt,
		onSendDue:  onSendDue,
		onTestReq:  onTestReq,
		onTimeout:  onTimeout,
	}
}

// Start arms both the send-side and receive-side timers. Called once
// the session enters INSESSION.
func (w *Watchdog) Start() {
	now := time.Now()
	w.lastOutbound = now
	w.lastInbound = now
	w.testPending = false
	w.armSend()
	w.armRecv()
}

// Stop cancels both timers, called on any transition out of
// INSESSION.
func (w *Watchdog) Stop() {
	if w.sendTimerID != 0 {
		w.wheel.Cancel(w.sendTimerID)
		w.sendTimerID = 0
	}
	if w.recvTimerID != 0 {
		w.wheel.Cancel(w.recvTimerID)
		w.recvTimerID = 0
	}
}

// NoteOutbound records that a message (any type) was just sent,
// deferring the next scheduled heartbeat.
func (w *Watchdog) NoteOutbound() {
	w.lastOutbound = time.Now()
}

// NoteInbound records that a message was just received, resetting the
// TestRequest/timeout clock.
func (w *Watchdog) NoteInbound() {
	w.lastInbound = time.Now()
	w.testPending = false
}

func (w *Watchdog) armSend() {
	w.sendTimerID = w.wheel.Add(w.heartBtInt, func() {
		if time.Since(w.lastOutbound) >= w.heartBtInt {
			w.onSendDue()
			w.lastOutbound = time.Now()
		}
		w.armSend()
	})
}

func (w *Watchdog) armRecv() {
	threshold := time.Duration(float64(w.heartBtInt) * 1.5)
	w.recvTimerID = w.wheel.Add(threshold, func() {
		idle := time.Since(w.lastInbound)
		switch {
		case idle >= 3*w.heartBtInt:
			w.onTimeout()
			return
		case idle >= threshold && !w.testPending:
			w.testPending = true
			w.onTestReq()
		}
		w.armRecv()
	})
}
