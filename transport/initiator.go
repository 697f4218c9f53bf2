package transport

import (
	"net"
	"sync"
	"time"

	"fixengine/fix"
)

// Initiator is the client-side transport variant: it creates a TCP
// socket with TCP_NODELAY, dials the configured address, and — once
// connected — delegates to an internal Connected for ongoing duplex
// traffic. The dial itself runs on a background goroutine so the
// reactor's Poll call never blocks; Poll simply checks whether the dial
// has completed yet, which is the Go-idiomatic equivalent of watching a
// nonblocking connect()'s writable event (spec.md §4.3).
type Initiator struct {
	events Events
	tlsCfg *TLSConfig

	mu        sync.Mutex
	state     State
	conn      net.Conn
	connected *Connected
	dialErr   chan error
	closed    bool
}

// NewInitiator creates an idle initiator. tlsCfg may be nil for plain TCP.
func NewInitiator(events Events, tlsCfg *TLSConfig) *Initiator {
	return &Initiator{events: events, tlsCfg: tlsCfg, state: StateIdle}
}

// Start begins a nonblocking connect to addr, bounded by timeout. Per
// spec.md §4.3 the socket is created with TCP_NODELAY.
func (in *Initiator) Start(addr string, timeout time.Duration) {
	in.mu.Lock()
	in.state = StateConnecting
	in.dialErr = make(chan error, 1)
	in.mu.Unlock()

	go func() {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			in.dialErr <- err
			return
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		if in.tlsCfg != nil {
			tconn, terr := wrapTLS(conn, in.tlsCfg, true)
			if terr != nil {
				conn.Close()
				in.dialErr <- terr
				return
			}
			conn = tconn
		}

		in.mu.Lock()
		in.conn = conn
		in.mu.Unlock()
		in.dialErr <- nil
	}()
}

// State returns the initiator's current lifecycle state.
func (in *Initiator) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

func (in *Initiator) Poll(budget time.Duration) error {
	in.mu.Lock()
	state := in.state
	ch := in.dialErr
	in.mu.Unlock()

	switch state {
	case StateConnecting:
		select {
		case err := <-ch:
			if err != nil {
				in.mu.Lock()
				in.state = StateError
				in.mu.Unlock()
				recoverable := IsRecoverable(err)
				in.events.OnDisconnect(recoverable)
				if recoverable {
					// Already handled via OnDisconnect (the session
					// re-arms its own reconnect timer); not a loop-level
					// exception.
					return nil
				}
				in.events.OnError(&fix.TransportError{Source: "initiator", Err: err, Recoverable: false})
				return err
			}
			in.mu.Lock()
			in.connected = NewConnected(in.conn, in.events)
			in.state = StateConnected
			in.mu.Unlock()
			in.events.OnConnect()
			return nil
		default:
			return nil
		}
	case StateConnected:
		return in.connected.Poll(budget)
	default:
		return nil
	}
}

// Enqueue forwards to the underlying Connected transport once CONNECTED;
// it is a no-op before then (the session should not attempt to send
// before OnConnect fires).
func (in *Initiator) Enqueue(frame []byte) {
	in.mu.Lock()
	c := in.connected
	in.mu.Unlock()
	if c != nil {
		c.Enqueue(frame)
	}
}

func (in *Initiator) Done() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

func (in *Initiator) Close() error {
	in.mu.Lock()
	in.closed = true
	c := in.connected
	conn := in.conn
	in.mu.Unlock()

	if c != nil {
		return c.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
