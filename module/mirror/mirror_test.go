package mirror

import (
	"testing"
	"time"

	chatmodel "PRelay/module/chat/model"
	chat "PRelay/service/chat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, m *Mirror, raw []byte) {
	t.Helper()
	f, err := chat.ParseFrame(raw)
	require.NoError(t, err)
	require.NoError(t, m.Apply(f))
}

func msg(id, sender, receiver, content string) chatmodel.Message {
	return chatmodel.Message{
		ID: id, SenderID: sender, ReceiverID: receiver, Content: content,
		CreatedAt: time.Now().UTC(),
	}
}

func TestUsersOnlineReplacesWholesale(t *testing.T) {
	m := New("A")

	apply(t, m, chat.BuildUsersOnline([]string{"A", "B", "C"}))
	assert.Equal(t, []string{"A", "B", "C"}, m.OnlineUsers())

	// full replace, not a merge
	apply(t, m, chat.BuildUsersOnline([]string{"A"}))
	assert.Equal(t, []string{"A"}, m.OnlineUsers())
}

func TestIncrementalConnectDisconnect(t *testing.T) {
	m := New("A")
	apply(t, m, chat.BuildUsersOnline([]string{"A"}))

	apply(t, m, chat.BuildUserConnected("B"))
	assert.True(t, m.IsOnline("B"))

	apply(t, m, chat.BuildActivityUpdated("B", "Coding"))
	assert.Equal(t, "Coding", m.Activities()["B"])

	// disconnect drops both presence and activity
	apply(t, m, chat.BuildUserDisconnected("B"))
	assert.False(t, m.IsOnline("B"))
	_, present := m.Activities()["B"]
	assert.False(t, present)
}

func TestActivityDeltaIsUpsertNotReplace(t *testing.T) {
	m := New("A")
	apply(t, m, chat.BuildActivityUpdated("B", "Coding"))
	apply(t, m, chat.BuildActivityUpdated("C", "Idle"))
	apply(t, m, chat.BuildActivityUpdated("B", "Gaming"))

	assert.Equal(t, map[string]string{"B": "Gaming", "C": "Idle"}, m.Activities())
}

func TestMessagesFilteredByConversation(t *testing.T) {
	m := New("A")
	m.SelectConversation("B")

	apply(t, m, chat.BuildReceiveMessage(ptr(msg("m1", "A", "B", "hey"))))
	apply(t, m, chat.BuildReceiveMessage(ptr(msg("m2", "B", "A", "yo"))))
	// other conversation, must be discarded
	apply(t, m, chat.BuildReceiveMessage(ptr(msg("m3", "C", "A", "psst"))))
	// does not include the local identity
	apply(t, m, chat.BuildReceiveMessage(ptr(msg("m4", "B", "C", "hi"))))

	got := m.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestSelectConversationClearsMessages(t *testing.T) {
	m := New("A")
	m.SelectConversation("B")
	apply(t, m, chat.BuildReceiveMessage(ptr(msg("m1", "A", "B", "hey"))))
	require.Len(t, m.Messages(), 1)

	m.SelectConversation("C")
	assert.Empty(t, m.Messages())

	// selecting the same peer again still clears
	m.SelectConversation("C")
	assert.Empty(t, m.Messages())
}

func TestNoConversationSelectedDiscards(t *testing.T) {
	m := New("A")
	apply(t, m, chat.BuildReceiveMessage(ptr(msg("m1", "B", "A", "hi"))))
	assert.Empty(t, m.Messages())
}

func TestSeedHistoryKeepsOnlyMatching(t *testing.T) {
	m := New("A")
	m.SelectConversation("B")
	m.SeedHistory([]chatmodel.Message{
		msg("m1", "A", "B", "one"),
		msg("m2", "C", "A", "other"),
		msg("m3", "B", "A", "two"),
	})

	got := m.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)
}

func TestMessageErrorSurfacesOnce(t *testing.T) {
	m := New("A")
	apply(t, m, chat.BuildMessageError("message could not be saved"))

	detail, ok := m.LastError()
	require.True(t, ok)
	assert.Equal(t, "message could not be saved", detail)

	_, ok = m.LastError()
	assert.False(t, ok)
}

func ptr(m chatmodel.Message) *chatmodel.Message { return &m }
