// Package server manages individual chat sessions, handling read/write
// pumps, the command state machine, rate limiting, and lifecycle control for
// each connection.
package server

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// relayQueue is a session-private unbounded buffer of messages awaiting
// delivery on that session's connection. The enqueue side is shared with the
// presence registry so any session can hand off a message; the drain side is
// owned exclusively by the session's write pump. No backpressure: a slow
// recipient accumulates messages in memory, an accepted limitation.
type relayQueue struct {
	mu     sync.Mutex
	items  []string
	ready  chan struct{}
	closed bool
}

func newRelayQueue() *relayQueue {
	return &relayQueue{ready: make(chan struct{}, 1)}
}

// Deliver enqueues one message without blocking. Messages delivered after
// the session has terminated are dropped.
func (q *relayQueue) Deliver(msg string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// next dequeues the oldest pending message, if any.
func (q *relayQueue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

func (q *relayQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

// Session is the per-connection state machine. identity transitions once
// from empty to a name on successful login (re-login re-targets it) and is
// only ever touched by the session's own read pump. The session ID tags this
// session's presence entries so a stale cleanup cannot evict a newer login.
type Session struct {
	id             uuid.UUID
	conn           *websocket.Conn
	core           *Core
	addr           string
	identity       string
	queue          *relayQueue
	done           chan struct{}
	doneOnce       sync.Once
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewSession creates a Session for an upgraded connection. The caller hands
// it to Core.StartSession to begin the pumps.
func NewSession(conn *websocket.Conn, core *Core, addr string) *Session {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Session{
		id:             uuid.New(),
		conn:           conn,
		core:           core,
		addr:           addr,
		queue:          newRelayQueue(),
		done:           make(chan struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Sink returns the handle other sessions use to relay messages here.
func (s *Session) Sink() MessageSink {
	return s.queue
}

// setupReadConnection configures read deadlines and the pong handler.
func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", s.addr, err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", s.addr, err)
		}
		return nil
	})
}

// handleReadError logs the read failure appropriately. Every failed read
// terminates the session; disconnects are ordinary termination, not errors.
func (s *Session) handleReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", s.addr, s.maxMessageSize)
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Session %s disconnected: %v", s.addr, err)
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Session %s connection closed: %v", s.addr, err)
		return
	}

	log.Printf("WebSocket read error from %s: %v", s.addr, err)
}

// checkRateLimit reports whether the next inbound line may be processed.
func (s *Session) checkRateLimit() bool {
	if s.rateLimiter != nil && !s.rateLimiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message", s.addr, s.rateLimit.Burst, s.rateLimit.RefillInterval)
		return false
	}
	return true
}

// handleLine runs one command through the state machine and enqueues the
// reply on the session's own queue. Returns false when the session should
// terminate.
func (s *Session) handleLine(line string) bool {
	cmd := ParseCommand(line)

	switch cmd.Kind {
	case CommandRegister:
		if err := s.core.RegisterUser(cmd.Name, cmd.Password); err != nil {
			if !errors.Is(err, ErrUserExists) {
				log.Printf("Registering user %q for %s failed: %v", cmd.Name, s.addr, err)
			}
			s.queue.Deliver(ReplyRegistrationError)
		} else {
			s.queue.Deliver(ReplyRegistrationOK)
		}

	case CommandLogin:
		switch s.core.Login(cmd.Name, cmd.Password, s.queue, s.id, s.identity) {
		case AuthOK:
			s.identity = cmd.Name
			s.queue.Deliver(ReplyLoginOK)
			log.Printf("User %s logged in from %s", cmd.Name, s.addr)
		case AuthWrongPassword:
			s.queue.Deliver(ReplyWrongPassword)
		case AuthNoSuchUser:
			s.queue.Deliver(ReplyNoSuchUser)
		}

	case CommandText:
		if s.identity == "" {
			s.queue.Deliver(ReplyLoginFirst)
		} else if !s.core.RouteText(s.identity, cmd.Recipient, cmd.Content) {
			s.queue.Deliver(ReplyNotOnline)
		}

	case CommandQuit:
		return false

	default:
		s.queue.Deliver(ReplyUnknownCommand)
	}

	return true
}

func (s *Session) readPump() {
	// Connection teardown belongs to writePump: signaling done here lets it
	// flush any pending replies before the close frame goes out, so a reply
	// enqueued just ahead of quit is never dropped.
	defer func() {
		s.core.Disconnect(s.identity, s.id)
		s.core.detachSession(s)
		s.signalDone()
	}()

	s.setupReadConnection()

	for {
		_, rawMessage, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		if !s.checkRateLimit() {
			continue
		}

		if !s.handleLine(string(rawMessage)) {
			log.Printf("Session %s quit", s.addr)
			return
		}
	}
}

// writePump multiplexes the relay queue, keepalive pings, and the
// termination signal. It is the connection's only writer and the sole owner
// of connection teardown. There is no fixed
// priority between queue items and pings; fairness between sources is
// whatever the runtime's select provides.
func (s *Session) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		s.queue.close()
		s.closeConn()
	}()

	for {
		select {
		case <-s.queue.ready:
			if !s.flushQueue() {
				return
			}
		case <-ticker.C:
			if !s.handlePing() {
				return
			}
		case <-s.done:
			s.flushQueue()
			s.writeCloseMessage()
			return
		}
	}
}

// flushQueue writes every currently pending message as its own text frame.
func (s *Session) flushQueue() bool {
	for {
		msg, ok := s.queue.next()
		if !ok {
			return true
		}
		if !s.writeTextMessage(msg) {
			return false
		}
	}
}

func (s *Session) writeTextMessage(msg string) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", s.addr, err)
		return false
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %s: %v", s.addr, err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close frame to the peer.
func (s *Session) writeCloseMessage() {
	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", s.addr, err)
		}
	}
}

// handlePing sends a ping message to keep the connection alive.
func (s *Session) handlePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", s.addr, err)
		return false
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", s.addr, err)
		}
		return false
	}
	return true
}

func (s *Session) signalDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// closeConn tears down the underlying connection, unwinding both pumps.
func (s *Session) closeConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection for %s: %v", s.addr, err)
		}
	}
}
