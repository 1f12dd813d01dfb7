package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	chatmodel "PRelay/module/chat/model"
	"PRelay/tools/errs"
	"PRelay/tools/ids"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	fail bool
	msgs []*chatmodel.Message
}

func (f *fakeStore) Create(_ context.Context, senderID, receiverID, content string) (*chatmodel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errs.ErrStore.WrapMsg("insert message", "cause", "backend down")
	}
	m := &chatmodel.Message{
		ID:             ids.GenerateString(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		ConversationID: chatmodel.DMKey(senderID, receiverID),
		CreatedAt:      time.Now().UTC(),
	}
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func recvFrame(t *testing.T, c *Client) *Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		f, err := ParseFrame(raw)
		require.NoError(t, err)
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a frame for conn=%s, got none", c.ConnID)
		return nil
	}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("expected no frame for conn=%s, got %s", c.ConnID, raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func decodeMessage(t *testing.T, f *Frame) chatmodel.Message {
	t.Helper()
	require.Equal(t, EvtReceiveMessage, f.Type)
	var m chatmodel.Message
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}

func TestRelayDeliversToBothEndpoints(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	relay := NewRelay(store, reg, time.Second)

	a := newTestClient("c1", "A")
	b := newTestClient("c2", "B")
	_, _ = reg.Register(a)
	_, _ = reg.Register(b)

	require.NoError(t, relay.Send(context.Background(), "A", "B", "hi"))

	got := decodeMessage(t, recvFrame(t, b))
	assert.Equal(t, "A", got.SenderID)
	assert.Equal(t, "B", got.ReceiverID)
	assert.Equal(t, "hi", got.Content)
	assert.NotEmpty(t, got.ID)

	// sender sees the identical event
	echo := decodeMessage(t, recvFrame(t, a))
	assert.Equal(t, got.ID, echo.ID)
}

func TestRelayOfflineReceiver(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	relay := NewRelay(store, reg, time.Second)

	a := newTestClient("c1", "A")
	_, _ = reg.Register(a)

	require.NoError(t, relay.Send(context.Background(), "A", "B", "hi"))

	// persisted even though B is offline
	assert.Equal(t, 1, store.count())

	// delivery to A only, no error frame
	got := decodeMessage(t, recvFrame(t, a))
	assert.Equal(t, "hi", got.Content)
	expectSilence(t, a)
}

func TestRelayStoreFailure(t *testing.T) {
	store := &fakeStore{fail: true}
	reg := NewRegistry()
	relay := NewRelay(store, reg, time.Second)

	a := newTestClient("c1", "A")
	b := newTestClient("c2", "B")
	_, _ = reg.Register(a)
	_, _ = reg.Register(b)

	err := relay.Send(context.Background(), "A", "B", "hi")
	require.Error(t, err)
	assert.True(t, errs.ErrStore.Is(err))

	// exactly one message_error, to the sender only
	f := recvFrame(t, a)
	assert.Equal(t, EvtMessageError, f.Type)
	expectSilence(t, a)
	expectSilence(t, b)
}

func TestRelayStoreFailureOfflineSender(t *testing.T) {
	store := &fakeStore{fail: true}
	reg := NewRegistry()
	relay := NewRelay(store, reg, time.Second)

	err := relay.Send(context.Background(), "A", "B", "hi")
	require.Error(t, err)
}

type slowStore struct {
	delay time.Duration
}

func (s *slowStore) Create(ctx context.Context, senderID, receiverID, content string) (*chatmodel.Message, error) {
	select {
	case <-time.After(s.delay):
		return &chatmodel.Message{ID: "m1", SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
	case <-ctx.Done():
		return nil, errs.ErrStore.WrapMsg("insert message", "cause", ctx.Err())
	}
}

func TestRelayTimeoutIsStoreFailure(t *testing.T) {
	reg := NewRegistry()
	relay := NewRelay(&slowStore{delay: time.Second}, reg, 20*time.Millisecond)

	a := newTestClient("c1", "A")
	_, _ = reg.Register(a)

	err := relay.Send(context.Background(), "A", "B", "hi")
	require.Error(t, err)

	f := recvFrame(t, a)
	assert.Equal(t, EvtMessageError, f.Type)
}
