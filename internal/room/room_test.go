package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_OwnerIsFirstJoiner(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "Alice")
	r.AddMember("c-b", "bob", "Bob")
	r.ElectHost(true)

	assert.Equal(t, "alice", r.OwnerID)
	assert.Equal(t, "alice", r.HostID)
}

func TestRoom_DuplicateJoinIsIdempotent(t *testing.T) {
	r := newRoom("r1")
	assert.False(t, r.AddMember("c-a", "alice", "Alice"))
	r.AddMember("c-b", "bob", "Bob")
	assert.True(t, r.AddMember("c-a2", "alice", "Alice 2"))

	require.Equal(t, 2, r.Len())
	ms := r.Members()
	assert.Equal(t, "alice", ms[0].UserID, "rejoin keeps the original join order")
	assert.Equal(t, "c-a2", ms[0].ConnectionID)
	assert.Equal(t, "Alice 2", ms[0].DisplayName)
}

func TestRoom_StaleConnectionDoesNotEvict(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "Alice")
	r.AddMember("c-a2", "alice", "Alice")

	assert.False(t, r.RemoveMember("c-a", "alice"))
	assert.True(t, r.HasMember("alice"))
	assert.True(t, r.RemoveMember("c-a2", "alice"))
	assert.True(t, r.Empty())
}

func TestRoom_IsBound(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "Alice")
	assert.True(t, r.IsBound("c-a", "alice"))

	r.AddMember("c-a2", "alice", "Alice")
	assert.False(t, r.IsBound("c-a", "alice"))
	assert.True(t, r.IsBound("c-a2", "alice"))
	assert.False(t, r.IsBound("c-a2", "bob"))
}

func TestRoom_ElectHost(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "")
	r.AddMember("c-b", "bob", "")
	r.AddMember("c-c", "carol", "")
	r.ElectHost(true)
	require.Equal(t, "alice", r.HostID)

	r.RemoveMember("c-a", "alice")
	assert.True(t, r.ElectHost(false))
	assert.Equal(t, "bob", r.HostID, "earliest remaining member takes over")

	// owner returns: host goes back to the owner
	r.AddMember("c-a2", "alice", "")
	assert.True(t, r.ElectHost(true))
	assert.Equal(t, "alice", r.HostID)
	assert.Equal(t, "alice", r.OwnerID)

	r.RemoveMember("c-a2", "alice")
	r.RemoveMember("c-b", "bob")
	r.ElectHost(false)
	assert.Equal(t, "carol", r.HostID)

	r.RemoveMember("c-c", "carol")
	r.ElectHost(false)
	assert.Empty(t, r.HostID)
}

func TestRoom_JoinKeepsFailoverHost(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "")
	r.AddMember("c-b", "bob", "")
	r.ElectHost(true)
	r.RemoveMember("c-a", "alice")
	r.ElectHost(false)
	require.Equal(t, "bob", r.HostID)

	r.AddMember("c-d", "dave", "")
	assert.False(t, r.ElectHost(true))
	assert.Equal(t, "bob", r.HostID)
}

func TestRoom_LockGate(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "")
	r.AddMember("c-b", "bob", "")
	r.ElectHost(true)

	assert.True(t, r.CanBroadcast("bob"))
	r.Locked = true
	assert.False(t, r.CanBroadcast("bob"))
	assert.True(t, r.CanBroadcast("alice"))
	assert.False(t, r.CanBroadcast(""))
}

func TestRoom_TypingClearedOnLeave(t *testing.T) {
	r := newRoom("r1")
	r.AddMember("c-a", "alice", "")
	r.AddMember("c-b", "bob", "")

	assert.True(t, r.SetTyping("bob", true))
	assert.False(t, r.SetTyping("bob", true))
	assert.Equal(t, []string{"bob"}, r.Snapshot().Typing)

	r.RemoveMember("c-b", "bob")
	assert.False(t, r.IsTyping("bob"))
	assert.Empty(t, r.Snapshot().Typing)
}
