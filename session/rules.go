package session

import "fixengine/fix"

// RuleOutcome is the explicit result-variant re-architecture spec.md
// §9 calls for in place of the source's exceptions-as-control-flow:
// the session-rule layer returns one of these and the state machine
// branches on it, never raising.
type RuleOutcome int

const (
	OutcomeAccepted RuleOutcome = iota
	OutcomeRejected
	OutcomeGapDetected
	OutcomeFatal
	OutcomeDropped
)

// RuleResult is the verdict EvaluateInbound returns for one inbound
// message, per spec.md §4.5.2.
type RuleResult struct {
	Outcome RuleOutcome

	// OutcomeGapDetected: the missing range to request.
	GapBegin int
	GapEnd   int

	// OutcomeRejected: the SessionRejectReason to cite.
	RejectReason int
	RejectText   string

	// OutcomeFatal: human-readable reason for the Logout.
	FatalReason string
}

// SequenceState tracks the two per-direction counters spec.md §3
// defines for a session: the next seqnum this side will assign
// outbound, and the next seqnum expected inbound.
type SequenceState struct {
	NextOut int
	NextIn  int
}

// NewSequenceState returns the fresh-session value (1, 1), per
// spec.md §3.
func NewSequenceState() SequenceState {
	return SequenceState{NextOut: 1, NextIn: 1}
}

// seenDuplicates is the set of already-delivered inbound seqnums,
// consulted by rule 3 (PossDup replay of an already-seen message is
// silently accepted, not re-delivered). Entries are only ever added:
// the set holds every seqnum delivered over the session's lifetime and
// is never pruned.
type seenDuplicates map[int]bool

// EvaluateInbound applies spec.md §4.5.2's four numbered rules to one
// parsed, framed message and returns the verdict. It does not mutate
// seq; the caller applies NextIn advancement itself once it acts on
// the result (keeping this function a pure decision point, per
// spec.md §9's result-variant re-architecture).
func EvaluateInbound(seq SequenceState, msg *fix.Message, seen seenDuplicates) RuleResult {
	got := msg.MsgSeqNum()

	switch {
	case got == seq.NextIn:
		return RuleResult{Outcome: OutcomeAccepted}

	case got > seq.NextIn:
		return RuleResult{
			Outcome:  OutcomeGapDetected,
			GapBegin: seq.NextIn,
			GapEnd:   got - 1,
		}

	case got < seq.NextIn:
		if msg.PossDupFlag() {
			if seen != nil && seen[got] {
				return RuleResult{Outcome: OutcomeAccepted}
			}
			// Already below NextIn but not in our seen set: per
			// spec.md §4.5.2 rule 3, log and drop rather than
			// deliver or reject.
			return RuleResult{Outcome: OutcomeDropped}
		}
		return RuleResult{
			Outcome:     OutcomeFatal,
			FatalReason: "MsgSeqNum too low, no PossDupFlag",
		}
	}

	return RuleResult{Outcome: OutcomeAccepted}
}

// PendingBuffer holds out-of-order messages received while a gap is
// outstanding, keyed by seqnum, released to the rule layer in order
// once the gap is filled (spec.md §4.5.2 rule 2: "buffer the newer
// message... until the gap is filled").
type PendingBuffer struct {
	byseq map[int]*fix.Message
}

func NewPendingBuffer() *PendingBuffer {
	return &PendingBuffer{byseq: make(map[int]*fix.Message)}
}

func (p *PendingBuffer) Add(msg *fix.Message) {
	p.byseq[msg.MsgSeqNum()] = msg
}

// Drain returns, in order, every buffered message starting at
// startSeq with no gap, removing them from the buffer. Stops at the
// first missing seqnum.
func (p *PendingBuffer) Drain(startSeq int) []*fix.Message {
	var out []*fix.Message
	n := startSeq
	for {
		msg, ok := p.byseq[n]
		if !ok {
			break
		}
		out = append(out, msg)
		delete(p.byseq, n)
		n++
	}
	return out
}

func (p *PendingBuffer) Len() int { return len(p.byseq) }
