package transport

import (
	"net"
	"sync"
	"time"

	"fixengine/fix"
)

// Acceptor is the server-side listening transport variant. On readiness
// it performs one accept per poll and hands the accepted connection to
// the session via events.OnAccept — the session is then responsible for
// registering a Connected (or TLS-wrapped Connected) transport for that
// socket with the reactor. Grounded on spec.md §4.3's acceptor contract;
// the accept-with-deadline idiom mirrors Connected.Poll so the reactor
// never blocks waiting on a listener with nothing pending.
type Acceptor struct {
	events Events
	tlsCfg *TLSConfig

	mu       sync.Mutex
	listener *net.TCPListener
	closed   bool
}

// NewAcceptor binds and listens on addr immediately, entering ACCEPTING.
func NewAcceptor(addr string, events Events, tlsCfg *TLSConfig) (*Acceptor, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}
	return &Acceptor{events: events, tlsCfg: tlsCfg, listener: ln}, nil
}

func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

func (a *Acceptor) Poll(budget time.Duration) error {
	a.mu.Lock()
	ln := a.listener
	closed := a.closed
	a.mu.Unlock()
	if closed || ln == nil {
		return nil
	}

	deadline := budget
	if deadline <= 0 {
		deadline = time.Millisecond
	}
	_ = ln.SetDeadline(time.Now().Add(deadline))

	conn, err := ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		if !IsRecoverable(err) {
			a.events.OnError(&fix.TransportError{Source: "acceptor", Err: err, Recoverable: false})
			return err
		}
		return nil
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	if a.tlsCfg != nil {
		tconn, terr := wrapTLS(conn, a.tlsCfg, false)
		if terr != nil {
			conn.Close()
			a.events.OnError(&fix.TransportError{Source: "acceptor", Err: terr, Recoverable: false})
			return nil
		}
		conn = tconn
	}

	a.events.OnAccept(conn)
	return nil
}

func (a *Acceptor) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Acceptor) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	ln := a.listener
	a.mu.Unlock()
	if ln != nil {
		return ln.Close()
	}
	return nil
}
