// Package session implements the FIX session state machine: connection
// lifecycle, login handshake, heartbeat watchdog, sequence checking,
// gap detection/resend, and reconnect, per spec.md §4.4/§4.5. Grounded
// structurally on sol/manager.go's per-target session map and
// reconnect loop, and on vendor/github.com/gwest/go-sol/session.go's
// session-owns-a-conn shape, both rewritten around FIX semantics
// instead of RMCP+/SOL.
package session

import (
	"time"

	"fixengine/fix"
)

// LoginValidator is the authentication capability spec.md §9's Open
// Question decision documents: a session runs the inbound Logon through
// this function before accepting it. The zero value is nil, which
// Config.Validator resolves to defaultLoginValidator — mirroring
// original_source/sxsuite's login_auth, which accepts unconditionally
// regardless of the credentials it's handed.
type LoginValidator func(msg *fix.Message) bool

func defaultLoginValidator(*fix.Message) bool { return true }

// Role distinguishes the two session startup paths spec.md §4.4
// describes: an Initiator dials out and re-dials on disconnect: an
// Acceptor waits on a listener and does not reconnect autonomously.
type Role int

const (
	RoleInitiator Role = iota
	RoleAcceptor
)

func (r Role) String() string {
	if r == RoleAcceptor {
		return "acceptor"
	}
	return "initiator"
}

// ResendMode selects how a ResendRequest is served, per spec.md §4.5.4.
type ResendMode int

const (
	ResendGapFill ResendMode = iota
	ResendFull
)

func ParseResendMode(s string) ResendMode {
	if s == "FULL" {
		return ResendFull
	}
	return ResendGapFill
}

// Identity is the fixed (BeginString, SenderCompID, TargetCompID)
// triple keying a session's persistent state, per spec.md §3.
type Identity struct {
	BeginString  string
	SenderCompID string
	TargetCompID string
}

func (id Identity) String() string {
	return id.BeginString + ":" + id.SenderCompID + "->" + id.TargetCompID
}

// Config is everything spec.md §6 lists as consumed by a session,
// plus the role and addressing needed to actually start a transport.
type Config struct {
	Identity Identity
	Role     Role
	Address  string // "host:port", passed as is to the transport's dial or listen

	HeartBtInt        time.Duration
	LoginWaitTime     time.Duration
	ConnectTimeout    time.Duration
	ReconnectInterval time.Duration
	WatchdogInterval  time.Duration

	ResendMode ResendMode
	ResetSeqNo bool

	MessageStorePath string
	StatePath        string

	TLSEnabled bool

	// Validator authenticates an inbound Logon beyond the CompID check
	// the state machine already performs. Nil means accept unconditionally.
	Validator LoginValidator
}

// validator returns c.Validator, or defaultLoginValidator if unset.
func (c *Config) validator() LoginValidator {
	if c.Validator != nil {
		return c.Validator
	}
	return defaultLoginValidator
}

// Defaults fills in the zero-value fields of c per spec.md §6's
// documented defaults (login_wait_time 30s, connect_timeout 30s,
// reconnect_interval 5s, watchdog_interval heartbeat/2).
func (c *Config) Defaults() {
	if c.LoginWaitTime == 0 {
		c.LoginWaitTime = 30 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = 5 * time.Second
	}
	if c.WatchdogInterval == 0 && c.HeartBtInt > 0 {
		c.WatchdogInterval = c.HeartBtInt / 2
	}
}

// State is the session lifecycle state machine's current value, per
// spec.md §4.4.
type State int

const (
	StateIdle State = iota
	StateLogin
	StateSSLInit
	StateInSession
	StateLogout
	StateInError
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLogin:
		return "LOGIN"
	case StateSSLInit:
		return "SSL_INIT"
	case StateInSession:
		return "INSESSION"
	case StateLogout:
		return "LOGOUT"
	case StateInError:
		return "INERROR"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Stats are the operational counters spec.md's adminapi supplement
// (SPEC_FULL.md §5.2) exposes per session, grounded on
// sol/analytics.go's mutex-guarded counter struct.
type Stats struct {
	MessagesIn       int
	MessagesOut      int
	ResendsServed    int
	ResendsRequested int
	GapsDetected     int
	HeartbeatsSent   int
	HeartbeatsRecv   int
	TestRequestsSent int
	RejectsSent      int
	Reconnects       int
}
