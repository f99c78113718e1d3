package unit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/larkvale/textline/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records delivered messages.
type fakeSink struct {
	messages []string
}

func (f *fakeSink) Deliver(msg string) {
	f.messages = append(f.messages, msg)
}

func TestPresenceSetOnlineAndLookup(t *testing.T) {
	registry := server.NewPresenceRegistry()
	sink := &fakeSink{}
	owner := uuid.New()

	registry.SetOnline("alice", sink, owner)

	got, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, server.MessageSink(sink), got)

	_, ok = registry.Lookup("bob")
	assert.False(t, ok)
}

func TestPresenceSetOnlineOverwrites(t *testing.T) {
	registry := server.NewPresenceRegistry()
	first, second := &fakeSink{}, &fakeSink{}

	registry.SetOnline("alice", first, uuid.New())
	registry.SetOnline("alice", second, uuid.New())

	got, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, server.MessageSink(second), got)
	assert.Equal(t, 1, registry.Len())
}

func TestPresenceRemoveRequiresOwner(t *testing.T) {
	registry := server.NewPresenceRegistry()
	oldOwner, newOwner := uuid.New(), uuid.New()

	registry.SetOnline("alice", &fakeSink{}, oldOwner)
	registry.SetOnline("alice", &fakeSink{}, newOwner)

	// A superseded session's cleanup must not evict the newer login.
	assert.False(t, registry.Remove("alice", oldOwner))
	_, ok := registry.Lookup("alice")
	assert.True(t, ok)

	assert.True(t, registry.Remove("alice", newOwner))
	_, ok = registry.Lookup("alice")
	assert.False(t, ok)
}

func TestPresenceRemoveAbsentName(t *testing.T) {
	registry := server.NewPresenceRegistry()
	assert.False(t, registry.Remove("ghost", uuid.New()))
}
