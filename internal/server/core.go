// Package server coordinates the shared chat state: the user directory, the
// presence registry, and the set of live sessions. The Core type is the
// single serialization domain for all of them.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Core is the process-wide shared state handle passed to every session. One
// mutex covers both the directory and the presence registry because login
// must check credentials and publish presence as a single atomic step.
// Session code never touches the underlying maps directly.
type Core struct {
	mu        sync.Mutex
	directory *UserDirectory
	presence  *PresenceRegistry
	sessions  map[*Session]struct{}
	wg        sync.WaitGroup
	closed    bool
}

// NewCore creates a Core around a loaded user directory and an empty
// presence registry.
func NewCore(directory *UserDirectory) *Core {
	return &Core{
		directory: directory,
		presence:  NewPresenceRegistry(),
		sessions:  make(map[*Session]struct{}),
	}
}

// RegisterUser adds a new account and persists the directory snapshot before
// reporting success. The durable write happens under the lock; snapshot
// rewrites are serialized anyway and expected volume is small.
func (c *Core) RegisterUser(name, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.Add(User{Name: name, Password: password})
}

// Login authenticates a name/password pair and, on success, publishes sink
// as the online route for name, superseding any previous session holding it.
// prev is the caller's previous identity when it re-logs in under a new
// name; its presence entry is released if the caller still owns it.
func (c *Core) Login(name, password string, sink MessageSink, owner uuid.UUID, prev string) AuthResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := c.directory.Authenticate(name, password)
	if result != AuthOK {
		return result
	}

	if prev != "" && prev != name {
		c.presence.Remove(prev, owner)
	}
	c.presence.SetOnline(name, sink, owner)
	return AuthOK
}

// RouteText delivers content from sender to recipient if the recipient is
// online, and reports whether a route existed. The sink handle is resolved
// under the lock but the delivery itself happens outside it, so a sender
// never waits on the recipient's session.
func (c *Core) RouteText(sender, recipient, content string) bool {
	c.mu.Lock()
	sink, ok := c.presence.Lookup(recipient)
	c.mu.Unlock()

	if !ok {
		return false
	}
	sink.Deliver(FormatRelay(sender, content))
	return true
}

// Disconnect removes the presence entry for name if the terminating session
// still owns it. A no-op for anonymous sessions and for sessions whose entry
// was already superseded by a newer login.
func (c *Core) Disconnect(name string, owner uuid.UUID) {
	if name == "" {
		return
	}
	c.mu.Lock()
	removed := c.presence.Remove(name, owner)
	c.mu.Unlock()

	if removed {
		log.Printf("User %s is no longer online", name)
	}
}

// OnlineCount reports how many names currently have a presence entry.
func (c *Core) OnlineCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.Len()
}

// UserCount reports how many accounts are registered.
func (c *Core) UserCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.Len()
}

// StartSession tracks the session and launches its read and write pumps.
// Sessions arriving after shutdown has begun are closed immediately.
func (c *Core) StartSession(s *Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.closeConn()
		return
	}
	c.sessions[s] = struct{}{}
	// The Add must happen under the lock: Shutdown flips closed and then
	// waits, so an Add after the unlock could race its Wait.
	c.wg.Add(2)
	count := len(c.sessions)
	c.mu.Unlock()
	log.Printf("Session connected from %s. Active sessions: %d", s.addr, count)
	go func() {
		defer c.wg.Done()
		s.writePump()
	}()
	go func() {
		defer c.wg.Done()
		s.readPump()
	}()
}

// detachSession forgets a terminated session.
func (c *Core) detachSession(s *Session) {
	c.mu.Lock()
	_, ok := c.sessions[s]
	if ok {
		delete(c.sessions, s)
	}
	count := len(c.sessions)
	c.mu.Unlock()

	if ok {
		log.Printf("Session from %s closed. Active sessions: %d", s.addr, count)
	}
}

// Shutdown closes all live session connections and waits for their pumps to
// finish, or until the timeout is reached.
func (c *Core) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down all sessions...")

	c.mu.Lock()
	c.closed = true
	sessions := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.closeConn()
	}
	log.Printf("Closed %d session connections", len(sessions))

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Session shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Session shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
