package fix

import (
	"strconv"
)

// Field is a single (tag, raw-bytes) pair as it appears on the wire.
type Field struct {
	Tag   int
	Value string
}

// Group is one repeating entry of a group field: the ordered fields that
// make up a single instance, starting with the group's delimiter tag.
type Group struct {
	Fields []Field
}

// Message is an ordered sequence of fields split into header, body and
// trailer segments, preserving field order within each segment. Repeating
// groups are pulled out of the body into the Groups map, keyed by the
// group's NUMINGROUP tag, as an ordered list of sub-messages.
type Message struct {
	MsgType string

	Header  []Field
	Body    []Field
	Trailer []Field

	Groups map[int][]Group
}

// NewMessage creates an empty message of the given MsgType. Header
// fields other than BeginString/BodyLength/MsgType/Checksum are filled
// in by the session layer at send time (SenderCompID, TargetCompID,
// MsgSeqNum, SendingTime); callers only need to set body fields.
func NewMessage(msgType string) *Message {
	return &Message{
		MsgType: msgType,
		Groups:  make(map[int][]Group),
	}
}

// Set appends or replaces a body field, preserving first-seen order.
func (m *Message) Set(tag int, value string) {
	for i, f := range m.Body {
		if f.Tag == tag {
			m.Body[i].Value = value
			return
		}
	}
	m.Body = append(m.Body, Field{Tag: tag, Value: value})
}

func (m *Message) SetInt(tag int, value int) {
	m.Set(tag, strconv.Itoa(value))
}

func (m *Message) SetBool(tag int, value bool) {
	if value {
		m.Set(tag, "Y")
	} else {
		m.Set(tag, "N")
	}
}

// Get returns the raw string value of a body or header field.
func (m *Message) Get(tag int) (string, bool) {
	for _, f := range m.Header {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	for _, f := range m.Body {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	for _, f := range m.Trailer {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

func (m *Message) GetInt(tag int) (int, bool) {
	v, ok := m.Get(tag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (m *Message) GetBool(tag int) (bool, bool) {
	v, ok := m.Get(tag)
	if !ok {
		return false, false
	}
	return v == "Y", true
}

// SetGroup replaces the repeating entries for a NUMINGROUP tag.
func (m *Message) SetGroup(numInGroupTag int, entries []Group) {
	m.Groups[numInGroupTag] = entries
}

func (m *Message) GroupEntries(numInGroupTag int) []Group {
	return m.Groups[numInGroupTag]
}

// setHeaderField appends or replaces a header field, used only by the
// framer/serializer — application code never sets header fields directly.
func (m *Message) setHeaderField(tag int, value string) {
	for i, f := range m.Header {
		if f.Tag == tag {
			m.Header[i].Value = value
			return
		}
	}
	m.Header = append(m.Header, Field{Tag: tag, Value: value})
}

func (m *Message) headerValue(tag int) (string, bool) {
	for _, f := range m.Header {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// BeginString, SenderCompID, TargetCompID, MsgSeqNum, SendingTime are
// convenience accessors over the header segment, used throughout the
// session-rule layer.

func (m *Message) BeginString() string {
	v, _ := m.headerValue(TagBeginString)
	return v
}

func (m *Message) SenderCompID() string {
	v, _ := m.headerValue(TagSenderCompID)
	return v
}

func (m *Message) TargetCompID() string {
	v, _ := m.headerValue(TagTargetCompID)
	return v
}

func (m *Message) SendingTime() string {
	v, _ := m.headerValue(TagSendingTime)
	return v
}

func (m *Message) MsgSeqNum() int {
	v, _ := m.headerValue(TagMsgSeqNum)
	n, _ := strconv.Atoi(v)
	return n
}

func (m *Message) PossDupFlag() bool {
	v, ok := m.Get(TagPossDupFlag)
	return ok && v == "Y"
}

// Clone returns a deep-enough copy safe to mutate (used by resend, which
// rewrites PossDupFlag/OrigSendingTime/MsgSeqNum without disturbing the
// cached record it came from).
func (m *Message) Clone() *Message {
	cp := &Message{
		MsgType: m.MsgType,
		Header:  append([]Field(nil), m.Header...),
		Body:    append([]Field(nil), m.Body...),
		Trailer: append([]Field(nil), m.Trailer...),
		Groups:  make(map[int][]Group, len(m.Groups)),
	}
	for k, v := range m.Groups {
		cp.Groups[k] = append([]Group(nil), v...)
	}
	return cp
}
