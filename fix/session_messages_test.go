package fix

import "testing"

func TestNewLogonFields(t *testing.T) {
	m := NewLogon(30, true)
	if m.MsgType != MsgTypeLogon {
		t.Errorf("expected MsgType A, got %s", m.MsgType)
	}
	if m.HeartBtInt() != 30 {
		t.Errorf("expected HeartBtInt 30, got %d", m.HeartBtInt())
	}
	if !m.ResetSeqNumFlag() {
		t.Error("expected ResetSeqNumFlag true")
	}
}

func TestNewLogonWithoutReset(t *testing.T) {
	m := NewLogon(30, false)
	if m.ResetSeqNumFlag() {
		t.Error("expected ResetSeqNumFlag false when not requested")
	}
}

func TestNewResendRequestRange(t *testing.T) {
	m := NewResendRequest(5, 0)
	if m.BeginSeqNo() != 5 {
		t.Errorf("expected BeginSeqNo 5, got %d", m.BeginSeqNo())
	}
	if m.EndSeqNo() != 0 {
		t.Errorf("expected EndSeqNo 0 (infinity), got %d", m.EndSeqNo())
	}
}

func TestNewSequenceResetGapFill(t *testing.T) {
	m := NewSequenceReset(10, true)
	if m.NewSeqNo() != 10 {
		t.Errorf("expected NewSeqNo 10, got %d", m.NewSeqNo())
	}
	if !m.GapFillFlag() {
		t.Error("expected GapFillFlag true")
	}
}

func TestNewRejectCarriesReason(t *testing.T) {
	m := NewReject(7, RejectRequiredTagMissing, "missing SenderCompID")
	if m.MsgType != MsgTypeReject {
		t.Errorf("expected MsgType 3, got %s", m.MsgType)
	}
	ref, _ := m.GetInt(TagRefSeqNum)
	if ref != 7 {
		t.Errorf("expected RefSeqNum 7, got %d", ref)
	}
	reason, _ := m.GetInt(TagSessionReject)
	if reason != RejectRequiredTagMissing {
		t.Errorf("expected reason %d, got %d", RejectRequiredTagMissing, reason)
	}
	text, _ := m.Get(TagText)
	if text != "missing SenderCompID" {
		t.Errorf("unexpected text: %s", text)
	}
}

func TestStampPossDupPreservesOriginalSendingTime(t *testing.T) {
	m := NewHeartbeat("")
	m.setHeaderField(TagSendingTime, "20260101-00:00:00.000")
	StampPossDup(m, "20260101-00:00:00.000")

	if !m.PossDupFlag() {
		t.Error("expected PossDupFlag set")
	}
	orig, _ := m.headerValue(TagOrigSendTime)
	if orig != "20260101-00:00:00.000" {
		t.Errorf("unexpected OrigSendingTime: %s", orig)
	}
}
