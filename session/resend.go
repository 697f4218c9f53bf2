package session

import (
	"errors"
	"time"

	"fixengine/fix"
	"fixengine/store"
)

var errIncompleteStoredFrame = errors.New("session: stored record did not re-parse to a complete frame")

// ResendPolicy serves an inbound ResendRequest by walking the message
// store (consulting the recent-record cache first) and producing the
// frames to re-transmit, per spec.md §4.5.4. Session-level messages
// are collapsed into SequenceReset(GapFill=Y) runs unless ResendMode
// is FULL.
type ResendPolicy struct {
	Store    *store.MessageStore
	Cache    *store.RecentCache
	Mode     ResendMode
	Serializer *fix.Serializer
	SenderCompID string
	TargetCompID string
}

// Outbound is one frame the resend policy wants written to the
// transport, already serialized.
type Outbound struct {
	SeqNum int
	Wire   []byte
}

// Serve walks [begin, end] (end == 0 meaning "up to the highest stored
// seqnum") and returns the wire frames to send in order. Missing
// records encountered mid-range are gap-filled by collapsing the run
// into a single SequenceReset, per SPEC_FULL.md §10's Open Question
// decision.
func (rp *ResendPolicy) Serve(begin, end int) []Outbound {
	if end == 0 {
		end = rp.Store.Last()
	}
	if begin > end {
		return nil
	}

	var out []Outbound
	runStart := -1

	flushGapRun := func(uptoExclusive int) {
		if runStart < 0 {
			return
		}
		sr := fix.NewSequenceReset(uptoExclusive, true)
		wire := rp.Serializer.Serialize(sr, rp.SenderCompID, rp.TargetCompID, runStart, time.Now())
		out = append(out, Outbound{SeqNum: runStart, Wire: wire})
		runStart = -1
	}

	for n := begin; n <= end; n++ {
		rec, ok := rp.lookup(n)
		if !ok {
			// Missing record: treat exactly like a session-only
			// entry so it folds into the current gap-fill run.
			if runStart < 0 {
				runStart = n
			}
			continue
		}

		if fix.IsSessionMessage(rec.MsgType) && rp.Mode == ResendGapFill {
			if runStart < 0 {
				runStart = n
			}
			continue
		}

		flushGapRun(n)

		msg, err := parseWire(rec.Wire)
		if err != nil {
			continue
		}
		fix.StampPossDup(msg, msg.SendingTime())
		wire := rp.Serializer.Serialize(msg, rp.SenderCompID, rp.TargetCompID, n, time.Now())
		out = append(out, Outbound{SeqNum: n, Wire: wire})
	}
	flushGapRun(end + 1)

	return out
}

func (rp *ResendPolicy) lookup(n int) (store.Record, bool) {
	if rp.Cache != nil {
		if rec, ok := rp.Cache.Get(n); ok {
			return rec, true
		}
	}
	rec, err := rp.Store.Find(n)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return store.Record{}, false
		}
		return store.Record{}, false
	}
	return rec, true
}

// parseWire re-frames a previously stored outbound record back into a
// Message so its body fields can be re-serialized with a fresh
// PossDupFlag/SendingTime stamp.
func parseWire(wire []byte) (*fix.Message, error) {
	p := fix.NewParser(nil)
	msgs, errs := p.Feed(wire)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(msgs) == 0 {
		return nil, errIncompleteStoredFrame
	}
	return msgs[0], nil
}
