// Package server tracks which registered names are currently online and the
// sink used to reach each one.
package server

import "github.com/google/uuid"

// MessageSink accepts a text message for eventual delivery on some session's
// connection. Delivery is best-effort and unbounded; Deliver never blocks on
// the recipient.
type MessageSink interface {
	Deliver(msg string)
}

type presenceEntry struct {
	sink  MessageSink
	owner uuid.UUID
}

// PresenceRegistry maps an authenticated name to the sink of the session
// currently holding it. Entries are tagged with the owning session's ID so
// that a stale session's cleanup cannot evict a newer login under the same
// name. Entirely in-memory; empty after a process restart. Performs no
// locking of its own; all access is serialized by the owning Core.
type PresenceRegistry struct {
	online map[string]presenceEntry
}

// NewPresenceRegistry creates an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{online: make(map[string]presenceEntry)}
}

// SetOnline records sink as the route for name, unconditionally replacing
// any existing entry. The superseded session keeps its connection but no
// longer receives relayed messages.
func (p *PresenceRegistry) SetOnline(name string, sink MessageSink, owner uuid.UUID) {
	p.online[name] = presenceEntry{sink: sink, owner: owner}
}

// Remove deletes the entry for name only if it is still owned by the given
// session. Returns whether an entry was removed.
func (p *PresenceRegistry) Remove(name string, owner uuid.UUID) bool {
	entry, ok := p.online[name]
	if !ok || entry.owner != owner {
		return false
	}
	delete(p.online, name)
	return true
}

// Lookup returns the sink for name, if the name is online.
func (p *PresenceRegistry) Lookup(name string) (MessageSink, bool) {
	entry, ok := p.online[name]
	if !ok {
		return nil, false
	}
	return entry.sink, true
}

// Len reports how many names are currently online.
func (p *PresenceRegistry) Len() int {
	return len(p.online)
}
