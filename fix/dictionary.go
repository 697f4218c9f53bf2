// Package fix implements the tag=value wire protocol: framing, the field
// dictionary, message construction, and the fixed set of session-level
// message builders (Logon, Logout, Heartbeat, TestRequest, ResendRequest,
// SequenceReset, Reject).
package fix

import "fmt"

// WireType is the FIX wire representation of a field's value.
type WireType int

const (
	TypeInt WireType = iota
	TypeFloat
	TypeChar
	TypeString
	TypeUTCTimestamp
	TypeBoolean
	TypePrice
	TypeQty
	TypeAmt
	TypeData
	TypeLength
	TypeNumInGroup
)

// FieldDescriptor is an immutable dictionary entry: tag number, symbolic
// name and wire type. The decoded value type (integer/real/text) is
// implied by WireType; callers coerce via the Int/Float/String helpers
// on Message.
type FieldDescriptor struct {
	Tag  int
	Name string
	Type WireType
}

// GroupDescriptor is a FieldDescriptor whose Type is TypeNumInGroup, plus
// the ordered layout of a repeating entry. Layout[0].Tag is the group's
// delimiter tag — every repeated entry must start with it.
type GroupDescriptor struct {
	FieldDescriptor
	Layout []GroupMember
}

type GroupMember struct {
	Tag      int
	Required bool
}

// DelimiterTag returns the first tag of the group's entry layout.
func (g GroupDescriptor) DelimiterTag() int {
	if len(g.Layout) == 0 {
		return 0
	}
	return g.Layout[0].Tag
}

// Dictionary is a total mapping, by tag and by name, over one FIX
// version's field set, plus its repeating-group layouts.
type Dictionary struct {
	version string
	byTag   map[int]FieldDescriptor
	byName  map[string]FieldDescriptor
	groups  map[int]GroupDescriptor
}

// NewDictionary builds a dictionary from field and group descriptors.
// The source program generates this table from an XML schema at build
// time; this constructor is what consumes a generated (or hand-built)
// table at startup — generation itself is out of scope.
func NewDictionary(version string, fields []FieldDescriptor, groups []GroupDescriptor) *Dictionary {
	d := &Dictionary{
		version: version,
		byTag:   make(map[int]FieldDescriptor, len(fields)),
		byName:  make(map[string]FieldDescriptor, len(fields)),
		groups:  make(map[int]GroupDescriptor, len(groups)),
	}
	for _, f := range fields {
		d.byTag[f.Tag] = f
		d.byName[f.Name] = f
	}
	for _, g := range groups {
		d.byTag[g.Tag] = g.FieldDescriptor
		d.byName[g.Name] = g.FieldDescriptor
		d.groups[g.Tag] = g
	}
	return d
}

func (d *Dictionary) Version() string { return d.version }

func (d *Dictionary) ByTag(tag int) (FieldDescriptor, bool) {
	f, ok := d.byTag[tag]
	return f, ok
}

func (d *Dictionary) ByName(name string) (FieldDescriptor, bool) {
	f, ok := d.byName[name]
	return f, ok
}

func (d *Dictionary) Group(tag int) (GroupDescriptor, bool) {
	g, ok := d.groups[tag]
	return g, ok
}

// Standard header/trailer tags, fixed across FIX 4.x.
const (
	TagBeginString   = 8
	TagBodyLength    = 9
	TagMsgType       = 35
	TagSenderCompID  = 49
	TagTargetCompID  = 56
	TagMsgSeqNum     = 34
	TagSendingTime   = 52
	TagCheckSum      = 10
	TagPossDupFlag   = 43
	TagOrigSendTime  = 122
	TagTestReqID     = 112
	TagEncryptMethod = 98
	TagHeartBtInt    = 108
	TagResetSeqNum   = 141
	TagBeginSeqNo    = 7
	TagEndSeqNo      = 16
	TagNewSeqNo      = 36
	TagGapFillFlag   = 123
	TagRefSeqNum     = 45
	TagRefTagID      = 371
	TagRefMsgType    = 372
	TagSessionReject = 373
	TagText          = 58
)

// MsgType values for session-level messages.
const (
	MsgTypeLogon         = "A"
	MsgTypeHeartbeat     = "0"
	MsgTypeTestRequest   = "1"
	MsgTypeResendRequest = "2"
	MsgTypeReject        = "3"
	MsgTypeSequenceReset = "4"
	MsgTypeLogout        = "5"
)

// IsSessionMessage reports whether msgType is one of the fixed session
// administrative message types (as opposed to an application message).
func IsSessionMessage(msgType string) bool {
	switch msgType {
	case MsgTypeLogon, MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeReject, MsgTypeSequenceReset, MsgTypeLogout:
		return true
	}
	return false
}

// StandardDictionary returns the header/trailer/session-message field set
// common to FIX 4.2 and 4.4, sufficient to frame and route any message —
// application-specific tags are looked up by callers that layer their own
// dictionary entries on top via NewDictionary.
func StandardDictionary(version string) *Dictionary {
	fields := []FieldDescriptor{
		{TagBeginString, "BeginString", TypeString},
		{TagBodyLength, "BodyLength", TypeLength},
		{TagMsgType, "MsgType", TypeString},
		{TagSenderCompID, "SenderCompID", TypeString},
		{TagTargetCompID, "TargetCompID", TypeString},
		{TagMsgSeqNum, "MsgSeqNum", TypeInt},
		{TagSendingTime, "SendingTime", TypeUTCTimestamp},
		{TagCheckSum, "CheckSum", TypeString},
		{TagPossDupFlag, "PossDupFlag", TypeBoolean},
		{TagOrigSendTime, "OrigSendingTime", TypeUTCTimestamp},
		{TagTestReqID, "TestReqID", TypeString},
		{TagEncryptMethod, "EncryptMethod", TypeInt},
		{TagHeartBtInt, "HeartBtInt", TypeInt},
		{TagResetSeqNum, "ResetSeqNumFlag", TypeBoolean},
		{TagBeginSeqNo, "BeginSeqNo", TypeInt},
		{TagEndSeqNo, "EndSeqNo", TypeInt},
		{TagNewSeqNo, "NewSeqNo", TypeInt},
		{TagGapFillFlag, "GapFillFlag", TypeBoolean},
		{TagRefSeqNum, "RefSeqNum", TypeInt},
		{TagRefTagID, "RefTagID", TypeInt},
		{TagRefMsgType, "RefMsgType", TypeString},
		{TagSessionReject, "SessionRejectReason", TypeInt},
		{TagText, "Text", TypeString},
	}
	return NewDictionary(version, fields, nil)
}

func (w WireType) String() string {
	switch w {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeChar:
		return "CHAR"
	case TypeString:
		return "STRING"
	case TypeUTCTimestamp:
		return "UTCTIMESTAMP"
	case TypeBoolean:
		return "BOOLEAN"
	case TypePrice:
		return "PRICE"
	case TypeQty:
		return "QTY"
	case TypeAmt:
		return "AMT"
	case TypeData:
		return "DATA"
	case TypeLength:
		return "LENGTH"
	case TypeNumInGroup:
		return "NUMINGROUP"
	default:
		return fmt.Sprintf("WireType(%d)", int(w))
	}
}
