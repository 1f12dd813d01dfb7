package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(connID, userID string) *Client {
	c := NewClient(connID, nil, 8)
	c.UserID = userID
	return c
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	evicted, snap := r.Register(newTestClient("c1", "alice"))
	require.Nil(t, evicted)
	assert.Equal(t, []string{"alice"}, snap.Online)
	require.Len(t, snap.Conns, 1)

	c, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", c.ConnID)

	_, ok = r.Lookup("bob")
	assert.False(t, ok)
}

func TestRegisterTwiceKeepsOneEntry(t *testing.T) {
	r := NewRegistry()

	old := newTestClient("c1", "alice")
	_, _ = r.Register(old)
	evicted, snap := r.Register(newTestClient("c2", "alice"))

	require.NotNil(t, evicted)
	assert.Equal(t, "c1", evicted.ConnID)
	// exactly one entry, listed exactly once
	assert.Equal(t, []string{"alice"}, snap.Online)
	assert.Len(t, snap.Conns, 1)

	c, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", c.ConnID)
}

func TestEvictedConnRemovalDoesNotUnbindReplacement(t *testing.T) {
	r := NewRegistry()

	old := newTestClient("c1", "alice")
	_, _ = r.Register(old)
	_, _ = r.Register(newTestClient("c2", "alice"))

	// the stale transport drops after eviction
	_, _, ok := r.RemoveByConn("c1")
	assert.False(t, ok)

	_, ok = r.Lookup("alice")
	assert.True(t, ok)
}

func TestRemoveByConn(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register(newTestClient("c1", "alice"))
	_, _ = r.Register(newTestClient("c2", "bob"))

	userID, snap, ok := r.RemoveByConn("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", userID)
	assert.Equal(t, []string{"bob"}, snap.Online)

	_, ok = r.Lookup("alice")
	assert.False(t, ok)
}

func TestRemoveUnknownConnIsNoop(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register(newTestClient("c1", "alice"))

	_, _, ok := r.RemoveByConn("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"alice"}, r.OnlineIDs())
}

func TestActivityLifecycle(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register(newTestClient("c1", "alice"))

	// defaults to Online at registration
	assert.Equal(t, map[string]string{"alice": ActivityOnline}, r.ActivitySnapshot())

	conns, ok := r.SetActivity("alice", "Coding")
	require.True(t, ok)
	assert.Len(t, conns, 1)
	assert.Equal(t, "Coding", r.ActivitySnapshot()["alice"])

	// last-write-wins
	_, _ = r.SetActivity("alice", "Idle")
	assert.Equal(t, "Idle", r.ActivitySnapshot()["alice"])

	// gone after disconnect
	_, _, _ = r.RemoveByConn("c1")
	_, present := r.ActivitySnapshot()["alice"]
	assert.False(t, present)
}

func TestActivityForUnregisteredUserIgnored(t *testing.T) {
	r := NewRegistry()

	_, ok := r.SetActivity("ghost", "Lurking")
	assert.False(t, ok)
	assert.Empty(t, r.ActivitySnapshot())
}

func TestOnlineIDsSorted(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register(newTestClient("c1", "zoe"))
	_, _ = r.Register(newTestClient("c2", "alice"))
	_, snap := r.Register(newTestClient("c3", "bob"))

	assert.Equal(t, []string{"alice", "bob", "zoe"}, snap.Online)
}
