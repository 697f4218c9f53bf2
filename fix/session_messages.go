package fix

// NewLogon builds a Logon(35=A) per spec.md §4.5.3. resetSeqNum sets
// ResetSeqNumFlag(141=Y) when the session is configured to reset
// sequence numbers on this logon.
func NewLogon(heartBtInt int, resetSeqNum bool) *Message {
	m := NewMessage(MsgTypeLogon)
	m.SetInt(TagEncryptMethod, 0)
	m.SetInt(TagHeartBtInt, heartBtInt)
	if resetSeqNum {
		m.SetBool(TagResetSeqNum, true)
	}
	return m
}

// NewLogout builds a Logout(35=5), optionally carrying a human-readable
// reason in Text(58).
func NewLogout(reason string) *Message {
	m := NewMessage(MsgTypeLogout)
	if reason != "" {
		m.Set(TagText, reason)
	}
	return m
}

// NewHeartbeat builds a Heartbeat(35=0). testReqID is echoed back when
// sent in reply to a TestRequest; pass "" for an unsolicited heartbeat.
func NewHeartbeat(testReqID string) *Message {
	m := NewMessage(MsgTypeHeartbeat)
	if testReqID != "" {
		m.Set(TagTestReqID, testReqID)
	}
	return m
}

// NewTestRequest builds a TestRequest(35=1) carrying a fresh TestReqID.
func NewTestRequest(testReqID string) *Message {
	m := NewMessage(MsgTypeTestRequest)
	m.Set(TagTestReqID, testReqID)
	return m
}

// NewResendRequest builds a ResendRequest(35=2). endSeqNo == 0 means
// "infinity" per spec.md §4.5.4.
func NewResendRequest(beginSeqNo, endSeqNo int) *Message {
	m := NewMessage(MsgTypeResendRequest)
	m.SetInt(TagBeginSeqNo, beginSeqNo)
	m.SetInt(TagEndSeqNo, endSeqNo)
	return m
}

// NewSequenceReset builds a SequenceReset(35=4). gapFill selects GapFill
// mode (123=Y, advances expected_in) versus Reset mode (forcibly sets
// expected_in).
func NewSequenceReset(newSeqNo int, gapFill bool) *Message {
	m := NewMessage(MsgTypeSequenceReset)
	m.SetInt(TagNewSeqNo, newSeqNo)
	m.SetBool(TagGapFillFlag, gapFill)
	return m
}

// NewReject builds a Reject(35=3) citing the offending RefSeqNum and a
// SessionRejectReason, per spec.md §4.5.3 and §8 scenario 5.
func NewReject(refSeqNum, reason int, text string) *Message {
	m := NewMessage(MsgTypeReject)
	m.SetInt(TagRefSeqNum, refSeqNum)
	m.SetInt(TagSessionReject, reason)
	if text != "" {
		m.Set(TagText, text)
	}
	return m
}

// HeartBtInt extracts the HeartBtInt(108) field from a Logon message.
func (m *Message) HeartBtInt() int {
	n, _ := m.GetInt(TagHeartBtInt)
	return n
}

// ResetSeqNumFlag extracts ResetSeqNumFlag(141) from a Logon message.
func (m *Message) ResetSeqNumFlag() bool {
	b, _ := m.GetBool(TagResetSeqNum)
	return b
}

// BeginSeqNo/EndSeqNo extract a ResendRequest's range.
func (m *Message) BeginSeqNo() int {
	n, _ := m.GetInt(TagBeginSeqNo)
	return n
}

func (m *Message) EndSeqNo() int {
	n, _ := m.GetInt(TagEndSeqNo)
	return n
}

// NewSeqNo/GapFillFlag extract a SequenceReset's fields.
func (m *Message) NewSeqNo() int {
	n, _ := m.GetInt(TagNewSeqNo)
	return n
}

func (m *Message) GapFillFlag() bool {
	b, _ := m.GetBool(TagGapFillFlag)
	return b
}

// TestReqID extracts TestReqID(112).
func (m *Message) TestReqID() string {
	v, _ := m.Get(TagTestReqID)
	return v
}

// stampPossDup marks a resent message PossDupFlag=Y, preserving its
// original SendingTime into OrigSendingTime, per spec.md §4.5.4.
func (m *Message) stampPossDup(origSendingTime string) {
	m.setHeaderField(TagPossDupFlag, "Y")
	if origSendingTime != "" {
		m.setHeaderField(TagOrigSendTime, origSendingTime)
	}
}

// StampPossDup is the exported form used by the resend policy when
// replaying a cached wire record's parsed Message.
func StampPossDup(m *Message, origSendingTime string) { m.stampPossDup(origSendingTime) }
