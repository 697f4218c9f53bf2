package session

import (
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"fixengine/fix"
	"fixengine/reactor"
	"fixengine/store"
	"fixengine/transport"
)

// Handler is the application-side capability a Session delivers
// validated inbound application messages to and pulls outbound
// application messages from. appchannel.Channel implements it on top
// of the length-framed record protocol; tests may supply a fake.
type Handler interface {
	Deliver(msg *fix.Message)
	Outbound() <-chan *fix.Message
}

// Session is the runtime entity spec.md §3 describes: it owns a
// Transport, the in-memory sequence/pending state, a MessageStore and
// RecentCache, a heartbeat Watchdog, and a reference to the
// application channel's downstream end. It implements
// transport.Events (driven by its Transport) and reactor.Snapshotter
// (driven by the Reactor's save cadence).
type Session struct {
	cfg    Config
	reactr *reactor.Reactor
	dict   *fix.Dictionary

	transportID     uint64
	liveTransportID uint64
	initiator       *transport.Initiator
	acceptor        *transport.Acceptor
	live            *transport.Connected

	state State
	seq   SequenceState
	stats Stats

	pending *PendingBuffer
	seen    seenDuplicates

	gapOutstanding bool
	gapBegin       int
	gapEnd         int

	watchdog *Watchdog

	parser     *fix.Parser
	serializer *fix.Serializer

	msgStore *store.MessageStore
	cache    *store.RecentCache
	resend   *ResendPolicy

	handler Handler

	loginWaitTimerID  uint64
	reconnectTimerID  uint64
	lastPeer          string
	lastErr           error
	stopped           bool
	resetOnNextLogon  bool

	ctrl chan func(*Session)
}

// controlQueueSize bounds how many pending admin-surface requests
// (Status, RequestStop, RequestResetOnNextLogon) a session will queue
// before a Submit starts dropping them.
const controlQueueSize = 16

// New builds a Session for cfg, opening its message store and
// restoring any prior snapshot. Call Start to begin connecting
// (initiator) or listening (acceptor).
func New(cfg Config, r *reactor.Reactor, dict *fix.Dictionary, handler Handler) (*Session, error) {
	cfg.Defaults()

	ms, err := store.Open(cfg.MessageStorePath)
	if err != nil {
		return nil, fmt.Errorf("session %s: opening message store: %w", cfg.Identity, err)
	}

	seq := NewSequenceState()
	lastPeer := ""
	if snap, ok, err := store.LoadSnapshot(cfg.StatePath); err != nil {
		log.WithError(err).Warnf("session %s: snapshot load failed, starting fresh", cfg.Identity)
	} else if ok {
		seq = SequenceState{NextOut: snap.NextOut, NextIn: snap.NextIn}
		lastPeer = snap.LastPeer
	}

	s := &Session{
		cfg:        cfg,
		reactr:     r,
		dict:       dict,
		state:      StateIdle,
		seq:        seq,
		pending:    NewPendingBuffer(),
		seen:       make(seenDuplicates),
		parser:     fix.NewParser(dict),
		serializer: &fix.Serializer{BeginString: cfg.Identity.BeginString},
		msgStore:   ms,
		cache:      store.NewRecentCache(0),
		handler:    handler,
		lastPeer:   lastPeer,
		resetOnNextLogon: cfg.ResetSeqNo,
		ctrl:       make(chan func(*Session), controlQueueSize),
	}
	s.resend = &ResendPolicy{
		Store:        ms,
		Cache:        s.cache,
		Mode:         cfg.ResendMode,
		Serializer:   s.serializer,
		SenderCompID: cfg.Identity.SenderCompID,
		TargetCompID: cfg.Identity.TargetCompID,
	}
	r.AddSnapshot(s, cfg.StatePath)

	if handler != nil {
		r.Register(&handlerAdapter{session: s})
	}
	r.Register(&ctrlAdapter{session: s})

	return s, nil
}

// ctrlAdapter drains admin-surface requests on the reactor's own
// thread, the same pattern handlerAdapter uses for the application
// channel: Status/Stop/reset-on-next-logon reads and mutations of
// session state only ever happen on the reactor goroutine, so a
// cross-goroutine caller (adminapi) submits a closure instead of
// taking a lock.
type ctrlAdapter struct {
	session *Session
}

func (c *ctrlAdapter) Poll(budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		select {
		case fn := <-c.session.ctrl:
			fn(c.session)
		default:
			return nil
		}
	}
	return nil
}

func (c *ctrlAdapter) Done() bool { return c.session.stopped }

func (c *ctrlAdapter) Close() error { return nil }

// Submit queues fn to run on the reactor thread on this session's next
// poll. Returns false if the queue is full (the caller should treat
// this as "session busy" and retry).
func (s *Session) Submit(fn func(*Session)) bool {
	select {
	case s.ctrl <- fn:
		return true
	default:
		return false
	}
}

// StatusSnapshot is the cross-thread-safe view of a session's identity,
// lifecycle state and counters, assembled on the reactor thread and
// delivered back over a reply channel — grounded on SPEC_FULL.md §5.1's
// adminapi surface.
type StatusSnapshot struct {
	Identity Identity
	State    State
	Stats    Stats
	LastErr  string
}

const statusRequestTimeout = 2 * time.Second

// Status asks the reactor thread for a consistent snapshot of this
// session's state and counters. Safe to call from any goroutine.
func (s *Session) Status() StatusSnapshot {
	reply := make(chan StatusSnapshot, 1)
	if !s.Submit(func(ss *Session) {
		lastErr := ""
		if ss.lastErr != nil {
			lastErr = ss.lastErr.Error()
		}
		reply <- StatusSnapshot{Identity: ss.cfg.Identity, State: ss.state, Stats: ss.stats, LastErr: lastErr}
	}) {
		return StatusSnapshot{Identity: s.cfg.Identity}
	}
	select {
	case snap := <-reply:
		return snap
	case <-time.After(statusRequestTimeout):
		return StatusSnapshot{Identity: s.cfg.Identity}
	}
}

// RequestStop asks the reactor thread to stop this session cooperatively.
func (s *Session) RequestStop() {
	s.Submit(func(ss *Session) { ss.Stop() })
}

// RequestResetOnNextLogon arms a sequence-number reset to take effect
// the next time this session sends or accepts a Logon.
func (s *Session) RequestResetOnNextLogon() {
	s.Submit(func(ss *Session) { ss.resetOnNextLogon = true })
}

// handlerAdapter drains the application handler's outbound channel on
// the reactor's own thread, rather than a separate goroutine, so
// sendSession's mutation of session state never races with the
// transport callbacks — preserving spec.md §5's "no locks" invariant
// (all cross-boundary data flows through a channel the reactor itself
// polls).
type handlerAdapter struct {
	session *Session
}

func (h *handlerAdapter) Poll(budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		select {
		case msg, ok := <-h.session.handler.Outbound():
			if !ok {
				return nil
			}
			h.session.sendSession(msg)
		default:
			return nil
		}
	}
	return nil
}

func (h *handlerAdapter) Done() bool { return h.session.stopped }

func (h *handlerAdapter) Close() error { return nil }

// Start begins the session's connect (initiator) or listen (acceptor)
// path, per spec.md §4.4.
func (s *Session) Start() error {
	switch s.cfg.Role {
	case RoleInitiator:
		return s.startInitiator()
	default:
		return s.startAcceptor()
	}
}

func (s *Session) startInitiator() error {
	var tlsCfg *transport.TLSConfig
	if s.cfg.TLSEnabled {
		tlsCfg = &transport.TLSConfig{}
	}
	in := transport.NewInitiator(s, tlsCfg)
	s.initiator = in
	s.transportID = s.reactr.Register(in)
	in.Start(s.cfg.Address, s.cfg.ConnectTimeout)
	return nil
}

func (s *Session) startAcceptor() error {
	var tlsCfg *transport.TLSConfig
	if s.cfg.TLSEnabled {
		tlsCfg = &transport.TLSConfig{}
	}
	acc, err := transport.NewAcceptor(s.cfg.Address, s, tlsCfg)
	if err != nil {
		return fmt.Errorf("session %s: listen %s: %w", s.cfg.Identity, s.cfg.Address, err)
	}
	s.acceptor = acc
	s.transportID = s.reactr.Register(acc)
	return nil
}

// Stop asks the session to shut down cooperatively: it closes its
// transport(s), cancels timers, and transitions to STOPPED, per
// spec.md §4.4's stop() contract.
func (s *Session) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.state = StateStopped
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	if s.loginWaitTimerID != 0 {
		s.reactr.Timers.Cancel(s.loginWaitTimerID)
	}
	if s.reconnectTimerID != 0 {
		s.reactr.Timers.Cancel(s.reconnectTimerID)
	}
	if s.acceptor != nil {
		s.acceptor.Close()
	}
	if s.initiator != nil {
		s.initiator.Close()
	}
	if s.live != nil {
		s.live.Close()
	}
	if closer, ok := s.handler.(io.Closer); ok {
		closer.Close()
	}
}

// State reports the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Identity returns the session's fixed identity triple.
func (s *Session) Identity() Identity { return s.cfg.Identity }

// SnapshotStats returns a copy of the session's operational counters.
func (s *Session) SnapshotStats() Stats { return s.stats }

// --- transport.Events ---

func (s *Session) OnConnect() {
	log.Infof("session %s: connected (role=%s)", s.cfg.Identity, s.cfg.Role)
	s.state = StateLogin
	if s.cfg.Role == RoleInitiator {
		s.sendLogon()
	}
	s.armLoginWait()
}

// OnAccept hands a freshly accepted connection a Connected transport of
// its own, registered with the reactor; the Acceptor itself keeps
// listening, per spec.md §4.4's "acceptor resumes listening" contract.
func (s *Session) OnAccept(conn net.Conn) {
	if s.live != nil {
		// Single session per acceptor in this engine: refuse a second
		// concurrent peer rather than silently displacing the first.
		log.Warnf("session %s: rejecting extra connection from %s, already connected", s.cfg.Identity, conn.RemoteAddr())
		conn.Close()
		return
	}
	s.lastPeer = conn.RemoteAddr().String()
	s.live = transport.NewConnected(conn, s)
	s.liveTransportID = s.reactr.Register(s.live)
	s.OnConnect()
}

func (s *Session) OnReadable(data []byte) {
	msgs, errs := s.parser.Feed(data)
	for _, err := range errs {
		s.handleFrameError(err)
	}
	for _, msg := range msgs {
		s.stats.MessagesIn++
		s.handleInbound(msg)
	}
}

func (s *Session) OnWritable() {}

// OnDisconnect tears down the dead transport — closing it and
// unregistering it from the reactor — before reacting to the
// disconnect, mirroring the source's `_disconnect`
// (`self.transport.close(); self.transport.del_channel()`). Without
// this the reactor keeps re-polling the dead descriptor every tick
// (Done() never becomes true once unregistered) and, on the initiator
// side, would re-arm a reconnect timer on every such poll.
func (s *Session) OnDisconnect(recoverable bool) {
	log.Warnf("session %s: disconnected (recoverable=%v)", s.cfg.Identity, recoverable)
	if s.watchdog != nil {
		s.watchdog.Stop()
	}

	switch s.cfg.Role {
	case RoleInitiator:
		if s.initiator != nil {
			s.initiator.Close()
			s.reactr.Unregister(s.transportID)
			s.initiator = nil
		}
	default:
		if s.live != nil {
			s.live.Close()
			s.reactr.Unregister(s.liveTransportID)
		}
	}
	s.live = nil

	if s.stopped {
		return
	}

	switch s.cfg.Role {
	case RoleInitiator:
		s.state = StateIdle
		s.stats.Reconnects++
		s.armReconnect()
	default:
		s.state = StateIdle
	}
}

func (s *Session) OnError(err error) {
	log.WithError(err).Errorf("session %s: transport error", s.cfg.Identity)
	s.lastErr = err
}

func (s *Session) armReconnect() {
	s.reconnectTimerID = s.reactr.Timers.Add(s.cfg.ReconnectInterval, func() {
		if s.stopped {
			return
		}
		log.Infof("session %s: reconnecting", s.cfg.Identity)
		if err := s.startInitiator(); err != nil {
			log.WithError(err).Warnf("session %s: reconnect failed, rescheduling", s.cfg.Identity)
			s.armReconnect()
		}
	})
}

func (s *Session) armLoginWait() {
	s.loginWaitTimerID = s.reactr.Timers.Add(s.cfg.LoginWaitTime, func() {
		if s.state != StateLogin {
			return
		}
		log.Warnf("session %s: login wait exceeded", s.cfg.Identity)
		s.lastErr = fix.NewSessionError(s.cfg.Identity.String(), fix.ErrLoginWaitExceeded)
		s.closeTransport()
	})
}

// --- outbound session messages ---

func (s *Session) sendLogon() {
	resetFlag := s.resetOnNextLogon
	if resetFlag {
		s.seq = SequenceState{NextOut: 1, NextIn: 1}
		s.resetOnNextLogon = false
	}
	logon := fix.NewLogon(int(s.cfg.HeartBtInt/time.Second), resetFlag)
	s.sendSession(logon)
}

func (s *Session) sendHeartbeat(testReqID string) {
	s.stats.HeartbeatsSent++
	s.sendSession(fix.NewHeartbeat(testReqID))
}

func (s *Session) sendTestRequest() {
	id := fmt.Sprintf("TEST%d", s.seq.NextOut)
	s.stats.TestRequestsSent++
	s.sendSession(fix.NewTestRequest(id))
}

func (s *Session) sendResendRequest(begin, end int) {
	s.stats.ResendsRequested++
	s.sendSession(fix.NewResendRequest(begin, end))
}

func (s *Session) sendReject(refSeqNum, reason int, text string) {
	s.stats.RejectsSent++
	s.sendSession(fix.NewReject(refSeqNum, reason, text))
}

func (s *Session) sendLogout(reason string) {
	s.sendSession(fix.NewLogout(reason))
}

// sendSession assigns the next outbound seqnum, durably stores the
// serialized frame, then hands it to the transport, per spec.md
// §4.5.2's outbound contract and §4.6's durability-before-send
// ordering constraint.
func (s *Session) sendSession(msg *fix.Message) {
	n := s.seq.NextOut
	wire := s.serializer.Serialize(msg, s.cfg.Identity.SenderCompID, s.cfg.Identity.TargetCompID, n, time.Now())

	rec := store.Record{SeqNum: n, MsgType: msg.MsgType, Wire: wire}
	if err := s.msgStore.Save(rec); err != nil {
		log.WithError(err).Errorf("session %s: message store save failed for seq %d", s.cfg.Identity, n)
		return
	}
	s.cache.Put(rec)

	s.enqueueWire(wire)
	s.seq.NextOut++
	s.stats.MessagesOut++
	if s.watchdog != nil {
		s.watchdog.NoteOutbound()
	}
}

// closeTransport closes whichever transport is currently carrying this
// session's traffic: the live Connected (acceptor side, or once an
// Initiator has finished connecting the Initiator itself owns one
// internally and Close tears it down the same way).
func (s *Session) closeTransport() {
	if s.live != nil {
		s.live.Close()
		return
	}
	if s.initiator != nil {
		s.initiator.Close()
	}
}

func (s *Session) enqueueWire(wire []byte) {
	if s.live != nil {
		s.live.Enqueue(wire)
		return
	}
	if s.initiator != nil {
		s.initiator.Enqueue(wire)
	}
}

// --- inbound dispatch ---

func (s *Session) handleFrameError(err error) {
	log.WithError(err).Warnf("session %s: frame rejected", s.cfg.Identity)
	reason := fix.RejectOther
	if fe, ok := err.(*fix.FrameError); ok {
		switch fe.Reason {
		case "checksum mismatch":
			reason = fix.RejectIncorrectCheckSum
		case "invalid BodyLength":
			reason = fix.RejectIncorrectDataFormat
		case "missing required header field":
			reason = fix.RejectRequiredTagMissing
		}
	}
	s.sendReject(0, reason, err.Error())
}

func (s *Session) handleInbound(msg *fix.Message) {
	if s.state == StateLogin {
		s.handleLoginPhase(msg)
		return
	}

	result := EvaluateInbound(s.seq, msg, s.seen)
	switch result.Outcome {
	case OutcomeAccepted:
		s.deliverAccepted(msg)

	case OutcomeDropped:
		log.Debugf("session %s: dropped stale duplicate seq %d", s.cfg.Identity, msg.MsgSeqNum())

	case OutcomeGapDetected:
		s.stats.GapsDetected++
		s.pending.Add(msg)
		if !s.gapOutstanding {
			s.gapOutstanding = true
			s.gapBegin = result.GapBegin
			s.gapEnd = result.GapEnd
		} else {
			if result.GapBegin < s.gapBegin {
				s.gapBegin = result.GapBegin
			}
			if result.GapEnd > s.gapEnd {
				s.gapEnd = result.GapEnd
			}
		}
		// spec.md §4.5.2 rule 2 / §8 scenario 2: request exactly the
		// missing range, not "infinity" (EndSeqNo=0).
		s.sendResendRequest(s.gapBegin, s.gapEnd)

	case OutcomeFatal:
		log.Errorf("session %s: fatal sequence error: %s", s.cfg.Identity, result.FatalReason)
		s.lastErr = fix.NewSessionErrorf(s.cfg.Identity.String(), fix.ErrSeqNoMismatch, "%s", result.FatalReason)
		s.sendLogout(result.FatalReason)
		s.state = StateLogout
		s.closeTransport()
	}
}

// deliverAccepted processes one in-order message: session-level
// messages are handled here, application messages forwarded upstream,
// then expected_in advances and any now-contiguous pending messages
// are drained, per spec.md §4.5.2 rule 1.
func (s *Session) deliverAccepted(msg *fix.Message) {
	s.seen[msg.MsgSeqNum()] = true
	s.seq.NextIn++
	if s.watchdog != nil {
		s.watchdog.NoteInbound()
	}

	s.routeOne(msg)

	if s.gapOutstanding {
		filled := s.pending.Drain(s.seq.NextIn)
		for _, next := range filled {
			s.seq.NextIn++
			s.seen[next.MsgSeqNum()] = true
			s.routeOne(next)
		}
		if s.pending.Len() == 0 {
			s.gapOutstanding = false
		}
	}
}

func (s *Session) routeOne(msg *fix.Message) {
	if !fix.IsSessionMessage(msg.MsgType) {
		if s.handler != nil {
			s.handler.Deliver(msg)
		}
		return
	}

	switch msg.MsgType {
	case fix.MsgTypeHeartbeat:
		s.stats.HeartbeatsRecv++

	case fix.MsgTypeTestRequest:
		s.sendHeartbeat(msg.TestReqID())

	case fix.MsgTypeResendRequest:
		s.stats.ResendsServed++
		frames := s.resend.Serve(msg.BeginSeqNo(), msg.EndSeqNo())
		for _, f := range frames {
			s.enqueueWire(f.Wire)
		}

	case fix.MsgTypeSequenceReset:
		if msg.GapFillFlag() {
			if msg.NewSeqNo() > s.seq.NextIn {
				s.seq.NextIn = msg.NewSeqNo()
			}
		} else {
			s.seq.NextIn = msg.NewSeqNo()
		}

	case fix.MsgTypeLogout:
		log.Infof("session %s: received Logout", s.cfg.Identity)
		s.state = StateLogout
		s.closeTransport()

	case fix.MsgTypeLogon:
		// A mid-session Logon (re-logon) is unexpected once INSESSION;
		// log and ignore rather than re-running the handshake.
		log.Warnf("session %s: unexpected Logon while in-session", s.cfg.Identity)

	case fix.MsgTypeReject:
		refSeqNum, _ := msg.GetInt(fix.TagRefSeqNum)
		log.Warnf("session %s: peer rejected seq %d", s.cfg.Identity, refSeqNum)
	}
}

func (s *Session) handleLoginPhase(msg *fix.Message) {
	if msg.MsgType != fix.MsgTypeLogon {
		log.Warnf("session %s: expected Logon, got MsgType=%s", s.cfg.Identity, msg.MsgType)
		return
	}

	if s.cfg.Role == RoleAcceptor {
		if msg.SenderCompID() != s.cfg.Identity.TargetCompID || msg.TargetCompID() != s.cfg.Identity.SenderCompID {
			log.Errorf("session %s: Logon CompID mismatch", s.cfg.Identity)
			s.lastErr = fix.NewSessionError(s.cfg.Identity.String(), fix.ErrInvalidLogin)
			s.sendLogout("CompID mismatch")
			return
		}

		if !s.cfg.validator()(msg) {
			log.Errorf("session %s: Logon rejected by validator", s.cfg.Identity)
			s.lastErr = fix.NewSessionError(s.cfg.Identity.String(), fix.ErrInvalidLogin)
			s.sendLogout("Logon rejected")
			return
		}
	}

	if msg.ResetSeqNumFlag() {
		// Both sides reset to (1,1) on acceptance, per spec.md §4.5.3.
		// NextOut may already be 1 if we were the one proposing the
		// reset (sendLogon applies it symmetrically on our own side).
		s.seq.NextOut = 1
		s.seq.NextIn = 1
	}

	s.seen[msg.MsgSeqNum()] = true
	s.seq.NextIn = msg.MsgSeqNum() + 1

	if s.cfg.Role == RoleAcceptor {
		s.sendLogon()
	}

	if s.loginWaitTimerID != 0 {
		s.reactr.Timers.Cancel(s.loginWaitTimerID)
		s.loginWaitTimerID = 0
	}

	s.state = StateInSession
	s.watchdog = NewWatchdog(s.reactr.Timers, s.cfg.HeartBtInt,
		func() { s.sendHeartbeat("") },
		s.sendTestRequest,
		s.onHeartbeatTimeout,
	)
	s.watchdog.Start()
	log.Infof("session %s: INSESSION (next_out=%d next_in=%d)", s.cfg.Identity, s.seq.NextOut, s.seq.NextIn)
}

func (s *Session) onHeartbeatTimeout() {
	log.Errorf("session %s: heartbeat timeout", s.cfg.Identity)
	s.lastErr = fix.NewSessionError(s.cfg.Identity.String(), fix.ErrHeartbeatTimeout)
	s.closeTransport()
}

// --- reactor.Snapshotter ---

// Save persists the session's current sequence state and last peer
// address atomically, per spec.md §4.6.
func (s *Session) Save(path string) error {
	return store.SaveSnapshot(path, store.Snapshot{
		NextOut:  s.seq.NextOut,
		NextIn:   s.seq.NextIn,
		LastPeer: s.lastPeer,
	})
}
