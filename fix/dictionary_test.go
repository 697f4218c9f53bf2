package fix

import "testing"

func TestStandardDictionaryLookups(t *testing.T) {
	d := StandardDictionary("FIX.4.2")

	f, ok := d.ByTag(TagHeartBtInt)
	if !ok {
		t.Fatal("expected HeartBtInt in standard dictionary")
	}
	if f.Name != "HeartBtInt" || f.Type != TypeInt {
		t.Errorf("unexpected descriptor: %+v", f)
	}

	byName, ok := d.ByName("SenderCompID")
	if !ok || byName.Tag != TagSenderCompID {
		t.Errorf("expected SenderCompID to resolve to tag %d, got %+v", TagSenderCompID, byName)
	}

	if _, ok := d.ByTag(99999); ok {
		t.Error("expected unknown tag to miss")
	}
}

func TestIsSessionMessage(t *testing.T) {
	for _, mt := range []string{MsgTypeLogon, MsgTypeLogout, MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest, MsgTypeReject, MsgTypeSequenceReset} {
		if !IsSessionMessage(mt) {
			t.Errorf("expected %s to be a session message", mt)
		}
	}
	if IsSessionMessage("D") {
		t.Error("expected NewOrderSingle(35=D) to not be a session message")
	}
}

func TestGroupDescriptorDelimiterTag(t *testing.T) {
	g := GroupDescriptor{
		FieldDescriptor: FieldDescriptor{Tag: 268, Name: "NoMDEntries", Type: TypeNumInGroup},
		Layout:          []GroupMember{{Tag: 269, Required: true}, {Tag: 270, Required: true}},
	}
	if g.DelimiterTag() != 269 {
		t.Errorf("expected delimiter tag 269, got %d", g.DelimiterTag())
	}

	empty := GroupDescriptor{}
	if empty.DelimiterTag() != 0 {
		t.Errorf("expected 0 for empty layout, got %d", empty.DelimiterTag())
	}
}
