package fix

import (
	"testing"
	"time"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	s := &Serializer{BeginString: "FIX.4.2"}
	msg := NewLogon(30, false)
	when := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	wire := s.Serialize(msg, "ASIDE", "BSIDE", 1, when)

	p := NewParser(nil)
	got, errs := p.Feed(wire)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	out := got[0]
	if out.MsgType != MsgTypeLogon {
		t.Errorf("expected MsgType A, got %s", out.MsgType)
	}
	if out.SenderCompID() != "ASIDE" || out.TargetCompID() != "BSIDE" {
		t.Errorf("unexpected comp ids: sender=%s target=%s", out.SenderCompID(), out.TargetCompID())
	}
	if out.MsgSeqNum() != 1 {
		t.Errorf("expected seqnum 1, got %d", out.MsgSeqNum())
	}
	if out.HeartBtInt() != 30 {
		t.Errorf("expected heartbtint 30, got %d", out.HeartBtInt())
	}
}

func TestFeedDetectsChecksumMismatch(t *testing.T) {
	s := &Serializer{BeginString: "FIX.4.2"}
	msg := NewHeartbeat("")
	wire := s.Serialize(msg, "A", "B", 1, time.Now())

	// Corrupt the checksum digits near the end, keeping frame length the same.
	corrupted := append([]byte(nil), wire...)
	corrupted[len(corrupted)-2] = '9'
	corrupted[len(corrupted)-3] = '9'

	p := NewParser(nil)
	msgs, errs := p.Feed(corrupted)
	if len(msgs) != 0 {
		t.Fatalf("expected no valid messages, got %d", len(msgs))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	fe, ok := errs[0].(*FrameError)
	if !ok {
		t.Fatalf("expected *FrameError, got %T", errs[0])
	}
	if fe.Reason != "checksum mismatch" {
		t.Errorf("unexpected reason: %s", fe.Reason)
	}
}

func TestFeedWaitsForPartialFrame(t *testing.T) {
	s := &Serializer{BeginString: "FIX.4.2"}
	wire := s.Serialize(NewHeartbeat(""), "A", "B", 1, time.Now())

	p := NewParser(nil)
	msgs, errs := p.Feed(wire[:len(wire)-5])
	if len(msgs) != 0 || len(errs) != 0 {
		t.Fatalf("expected no output on partial frame, got msgs=%d errs=%d", len(msgs), len(errs))
	}

	msgs, errs = p.Feed(wire[len(wire)-5:])
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message once frame completes, got %d", len(msgs))
	}
}

func TestFeedRejectsWrongFirstField(t *testing.T) {
	p := NewParser(nil)
	msgs, errs := p.Feed([]byte("9=5\x0135=0\x01"))
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
	if len(errs) == 0 {
		t.Fatal("expected a FrameError for missing BeginString")
	}
}

func TestFeedMultipleFramesInOneRead(t *testing.T) {
	s := &Serializer{BeginString: "FIX.4.2"}
	var wire []byte
	wire = append(wire, s.Serialize(NewHeartbeat(""), "A", "B", 1, time.Now())...)
	wire = append(wire, s.Serialize(NewHeartbeat(""), "A", "B", 2, time.Now())...)

	p := NewParser(nil)
	msgs, errs := p.Feed(wire)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].MsgSeqNum() != 1 || msgs[1].MsgSeqNum() != 2 {
		t.Errorf("unexpected seq order: %d, %d", msgs[0].MsgSeqNum(), msgs[1].MsgSeqNum())
	}
}
