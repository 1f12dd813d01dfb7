// Package mirror is the consumer-side replica of presence, activity and
// conversation state, kept consistent purely by applying the server's
// event stream.
package mirror

import (
	"encoding/json"
	"sort"
	"sync"

	chatmodel "PRelay/module/chat/model"
	chat "PRelay/service/chat"
	"PRelay/tools/errs"
)

// Mirror applies inbound frames to a local view: the online set, the
// activity map, and the message list of the currently selected
// conversation.
type Mirror struct {
	mu           sync.RWMutex
	self         string
	online       map[string]struct{}
	activities   map[string]string
	conversation string // selected peer, empty = none
	messages     []chatmodel.Message
	lastError    string
}

func New(selfID string) *Mirror {
	return &Mirror{
		self:       selfID,
		online:     make(map[string]struct{}),
		activities: make(map[string]string),
	}
}

// Apply folds one server frame into the view. Unknown client-bound frames
// are a malformed-event error; the caller decides whether to log or drop.
func (m *Mirror) Apply(f *chat.Frame) error {
	switch f.Type {
	case chat.EvtUsersOnline:
		var ids []string
		if err := json.Unmarshal(f.Data, &ids); err != nil {
			return errs.ErrMalformedEvent.WrapMsg("users_online payload", "cause", err)
		}
		m.replaceOnline(ids)
	case chat.EvtUserConnected:
		id, err := chat.DecodeUserID(f)
		if err != nil {
			return err
		}
		m.addOnline(id)
	case chat.EvtUserDisconnected:
		id, err := chat.DecodeUserID(f)
		if err != nil {
			return err
		}
		m.removeOnline(id)
	case chat.EvtActivityUpdated:
		p, err := chat.DecodePayload[chat.ActivityPayload](f)
		if err != nil {
			return err
		}
		m.setActivity(p.UserID, p.Activity)
	case chat.EvtReceiveMessage:
		var msg chatmodel.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return errs.ErrMalformedEvent.WrapMsg("receive_message payload", "cause", err)
		}
		m.appendMessage(msg)
	case chat.EvtMessageError:
		// surfaced through LastError for the UI; non-fatal
		var detail string
		_ = json.Unmarshal(f.Data, &detail)
		m.setError(detail)
	default:
		return errs.ErrMalformedEvent.WrapMsg("unexpected server frame", "type", string(f.Type))
	}
	return nil
}

// SelectConversation switches the active peer and unconditionally clears
// the message list; repopulation belongs to the history fetcher.
func (m *Mirror) SelectConversation(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversation = peer
	m.messages = nil
}

// SeedHistory loads fetched history into the view, keeping only messages
// of the selected conversation.
func (m *Mirror) SeedHistory(msgs []chatmodel.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	for _, msg := range msgs {
		if m.matchesLocked(msg) {
			m.messages = append(m.messages, msg)
		}
	}
}

func (m *Mirror) OnlineUsers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.online))
	for id := range m.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Mirror) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.online[userID]
	return ok
}

func (m *Mirror) Activities() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.activities))
	for k, v := range m.activities {
		out[k] = v
	}
	return out
}

func (m *Mirror) Messages() []chatmodel.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]chatmodel.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// LastError returns the most recent message_error detail, clearing it.
func (m *Mirror) LastError() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastError == "" {
		return "", false
	}
	e := m.lastError
	m.lastError = ""
	return e, true
}

func (m *Mirror) replaceOnline(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.online[id] = struct{}{}
	}
}

func (m *Mirror) addOnline(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[id] = struct{}{}
}

func (m *Mirror) removeOnline(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.online, id)
	delete(m.activities, id)
}

func (m *Mirror) setActivity(id, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[id] = label
}

func (m *Mirror) setError(detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = detail
}

// appendMessage keeps only messages of the selected conversation that
// include the local identity. Relay targeting should make mismatches
// impossible; the filter is a required invariant regardless.
func (m *Mirror) appendMessage(msg chatmodel.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matchesLocked(msg) {
		m.messages = append(m.messages, msg)
	}
}

func (m *Mirror) matchesLocked(msg chatmodel.Message) bool {
	if m.conversation == "" {
		return false
	}
	sent := msg.SenderID == m.self && msg.ReceiverID == m.conversation
	received := msg.SenderID == m.conversation && msg.ReceiverID == m.self
	if m.conversation == m.self {
		return msg.SenderID == m.self && msg.ReceiverID == m.self
	}
	return sent || received
}
