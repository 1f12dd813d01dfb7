package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, store MessageStore) *Server {
	t.Helper()
	s := NewServer(Options{NodeID: "gw-test", Store: store})
	t.Cleanup(func() { s.fanout.Stop() })
	return s
}

func decodeOnline(t *testing.T, f *Frame) []string {
	t.Helper()
	require.Equal(t, EvtUsersOnline, f.Type)
	var ids []string
	require.NoError(t, json.Unmarshal(f.Data, &ids))
	return ids
}

func decodeUser(t *testing.T, f *Frame) string {
	t.Helper()
	id, err := DecodeUserID(f)
	require.NoError(t, err)
	return id
}

func TestConnectBroadcastsFullListAndIncrement(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	a := NewClient("c1", nil, 16)
	s.RegisterClient(a, "A")

	assert.Equal(t, []string{"A"}, decodeOnline(t, recvFrame(t, a)))
	assert.Equal(t, "A", decodeUser(t, recvFrame(t, a)))

	b := NewClient("c2", nil, 16)
	s.RegisterClient(b, "B")

	// both peers get the updated full list plus the incremental notice
	assert.Equal(t, []string{"A", "B"}, decodeOnline(t, recvFrame(t, a)))
	f := recvFrame(t, a)
	require.Equal(t, EvtUserConnected, f.Type)
	assert.Equal(t, "B", decodeUser(t, f))

	assert.Equal(t, []string{"A", "B"}, decodeOnline(t, recvFrame(t, b)))
	assert.Equal(t, "B", decodeUser(t, recvFrame(t, b)))
}

func TestReRegisterBroadcastsUserOnce(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	a1 := NewClient("c1", nil, 16)
	s.RegisterClient(a1, "A")
	awaitN(t, a1, 2)

	a2 := NewClient("c2", nil, 16)
	s.RegisterClient(a2, "A")

	assert.Equal(t, []string{"A"}, decodeOnline(t, recvFrame(t, a2)))

	// the evicted transport is closed
	select {
	case <-a1.Done():
	default:
		t.Fatal("evicted connection was not closed")
	}
}

func TestDisconnectBroadcasts(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	a := NewClient("c1", nil, 16)
	b := NewClient("c2", nil, 16)
	s.RegisterClient(a, "A")
	s.RegisterClient(b, "B")
	awaitN(t, a, 4)
	awaitN(t, b, 2)

	s.Disconnect(b)

	assert.Equal(t, []string{"A"}, decodeOnline(t, recvFrame(t, a)))
	f := recvFrame(t, a)
	require.Equal(t, EvtUserDisconnected, f.Type)
	assert.Equal(t, "B", decodeUser(t, f))

	// B's activity entry is gone from subsequent snapshots
	_, present := s.Registry().ActivitySnapshot()["B"]
	assert.False(t, present)
}

func TestDisconnectUnknownConnIsSilent(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	a := NewClient("c1", nil, 16)
	s.RegisterClient(a, "A")
	awaitN(t, a, 2)

	ghost := NewClient("c9", nil, 16)
	s.Disconnect(ghost)

	expectSilence(t, a)
}

func TestActivityDeltaNeverFullList(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	a := NewClient("c1", nil, 16)
	b := NewClient("c2", nil, 16)
	s.RegisterClient(a, "A")
	s.RegisterClient(b, "B")
	awaitN(t, a, 4)
	awaitN(t, b, 2)

	s.UpdateActivity("A", "Coding")

	for _, c := range []*Client{a, b} {
		f := recvFrame(t, c)
		require.Equal(t, EvtActivityUpdated, f.Type)
		p, err := DecodePayload[ActivityPayload](f)
		require.NoError(t, err)
		assert.Equal(t, "A", p.UserID)
		assert.Equal(t, "Coding", p.Activity)
		expectSilence(t, c)
	}
}

func TestActivityForUnknownUserIsSilent(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	a := NewClient("c1", nil, 16)
	s.RegisterClient(a, "A")
	awaitN(t, a, 2)

	s.UpdateActivity("ghost", "Lurking")
	expectSilence(t, a)
}

// awaitN consumes exactly n frames, blocking until the fan-out worker has
// delivered them.
func awaitN(t *testing.T, c *Client, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		recvFrame(t, c)
	}
}

// Concurrent registrations and removals must leave every peer with a final
// users_online view that matches the registry: each mutation queues its
// broadcast before the next mutation can run, so full lists are never
// observed in inverted order.
func TestConcurrentMutationsConvergeToRegistryView(t *testing.T) {
	s := newTestServer(t, &fakeStore{})

	obs := NewClient("obs", nil, 1024)
	s.RegisterClient(obs, "O")
	awaitN(t, obs, 2)

	const n = 32
	clients := make([]*Client, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(fmt.Sprintf("c%d", i), nil, 1024)
			clients[i] = c
			s.RegisterClient(c, fmt.Sprintf("u%02d", i))
		}(i)
	}
	wg.Wait()

	// every registration sends the observer a full list plus the
	// incremental notice; the last list must equal the registry
	lastOnline := drainOnline(t, obs, 2*n)
	assert.Equal(t, s.Registry().OnlineIDs(), lastOnline)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Disconnect(clients[i])
		}(i)
	}
	wg.Wait()

	lastOnline = drainOnline(t, obs, 2*n)
	assert.Equal(t, []string{"O"}, lastOnline)
}

// drainOnline consumes exactly n frames and returns the last full online
// list among them.
func drainOnline(t *testing.T, c *Client, n int) []string {
	t.Helper()
	var last []string
	for i := 0; i < n; i++ {
		f := recvFrame(t, c)
		if f.Type != EvtUsersOnline {
			continue
		}
		var ids []string
		require.NoError(t, json.Unmarshal(f.Data, &ids))
		last = ids
	}
	return last
}
