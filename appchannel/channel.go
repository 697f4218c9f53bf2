package appchannel

import (
	"encoding/gob"
	"errors"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"fixengine/fix"
)

type recordKind int

const (
	kindAppMessage recordKind = iota // session -> worker: validated inbound application message
	kindOutbound                     // worker -> session: application message to transmit
	kindException                    // worker -> session: handler raised while processing a message
	kindShutdown                     // either direction: cooperative close
)

// record is the one wire type the channel ever carries, per spec.md
// §4.7's "one of: validated application message, outbound application
// message, handler-side exception, shutdown signal".
type record struct {
	Kind    recordKind
	Message *fix.Message
	ErrText string
}

// ExceptionPolicy decides what happens when a handler-side exception is
// delivered back to the session. The default logs and keeps the
// session running, per spec.md §4.7/§7's "by default logs and keeps
// the session running (policy configurable)".
type ExceptionPolicy func(err error)

func defaultExceptionPolicy(err error) {
	log.WithError(err).Warn("appchannel: handler exception")
}

// Channel is the reactor-side end of the application channel. It
// satisfies the session.Handler capability (Deliver/Outbound) that
// session.New takes. Deliver never blocks the reactor thread: it only
// appends to an internal buffer that a dedicated sender goroutine
// drains onto the wire, preserving spec.md §5's "callbacks must not
// block" rule even though the underlying net.Pipe is unbuffered.
type Channel struct {
	conn net.Conn
	enc  *gob.Encoder

	mu     sync.Mutex
	sendQ  []record
	wake   chan struct{}
	closed bool

	outbound chan *fix.Message

	policy ExceptionPolicy
}

// NewChannel starts a worker goroutine running handler over its own end
// of an in-process net.Pipe and returns the session-side Channel to
// register with session.New. cfg is handed to the handler's Setup as
// static configuration. A nil policy installs defaultExceptionPolicy.
func NewChannel(handler Handler, cfg map[string]string, policy ExceptionPolicy) *Channel {
	if policy == nil {
		policy = defaultExceptionPolicy
	}
	sessionConn, workerConn := net.Pipe()

	ch := &Channel{
		conn:     sessionConn,
		enc:      gob.NewEncoder(sessionConn),
		wake:     make(chan struct{}, 1),
		outbound: make(chan *fix.Message, 64),
		policy:   policy,
	}

	go ch.sendLoop()
	go ch.recvLoop()
	go runWorker(workerConn, handler, cfg)

	return ch
}

// Deliver hands a session-rule-validated inbound application message to
// the handler, in the order its seqnum was accepted (spec.md §4.7's
// ordering guarantee — Deliver is only ever called from the reactor
// thread, one message at a time).
func (c *Channel) Deliver(msg *fix.Message) {
	c.enqueue(record{Kind: kindAppMessage, Message: msg})
}

// Outbound is drained by the session's handlerAdapter to pick up
// application messages the handler wants transmitted.
func (c *Channel) Outbound() <-chan *fix.Message {
	return c.outbound
}

// Close asks the worker to shut down cooperatively and releases the
// pipe. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.enqueue(record{Kind: kindShutdown})
	return nil
}

func (c *Channel) enqueue(r record) {
	c.mu.Lock()
	if c.closed && r.Kind != kindShutdown {
		c.mu.Unlock()
		return
	}
	c.sendQ = append(c.sendQ, r)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// sendLoop is the dedicated writer: it owns the only goroutine that
// ever blocks on conn.Write, so Deliver/Close themselves never do.
func (c *Channel) sendLoop() {
	for range c.wake {
		for {
			c.mu.Lock()
			if len(c.sendQ) == 0 {
				c.mu.Unlock()
				break
			}
			r := c.sendQ[0]
			c.sendQ = c.sendQ[1:]
			c.mu.Unlock()

			if err := c.enc.Encode(r); err != nil {
				log.WithError(err).Debug("appchannel: send loop closing")
				c.conn.Close()
				return
			}
			if r.Kind == kindShutdown {
				c.conn.Close()
				return
			}
		}
	}
}

// recvLoop reads worker-originated records: outbound application
// messages are pushed to the Outbound channel, exceptions are handed to
// the exception policy, per spec.md §4.7.
func (c *Channel) recvLoop() {
	dec := gob.NewDecoder(c.conn)
	for {
		var r record
		if err := dec.Decode(&r); err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("appchannel: recv loop closing")
			}
			close(c.outbound)
			return
		}
		switch r.Kind {
		case kindOutbound:
			c.outbound <- r.Message
		case kindException:
			c.policy(errors.New(r.ErrText))
		case kindShutdown:
			close(c.outbound)
			return
		}
	}
}
