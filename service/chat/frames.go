package chat

import (
	"encoding/json"

	chatmodel "PRelay/module/chat/model"
	decode "PRelay/tools/decode"
	"PRelay/tools/errs"
)

// EventType is the closed set of frame kinds on the wire. Dispatch is
// keyed on it; anything outside the set is a malformed event.
type EventType string

const (
	// client -> server
	EvtUserConnected  EventType = "user_connected" // also server -> client incremental add
	EvtUpdateActivity EventType = "update_activity"
	EvtSendMessage    EventType = "send_message"

	// server -> client
	EvtUsersOnline      EventType = "users_online"
	EvtUserDisconnected EventType = "user_disconnected"
	EvtActivityUpdated  EventType = "activity_updated"
	EvtReceiveMessage   EventType = "receive_message"
	EvtMessageError     EventType = "message_error"
)

var knownEvents = map[EventType]struct{}{
	EvtUserConnected:    {},
	EvtUpdateActivity:   {},
	EvtSendMessage:      {},
	EvtUsersOnline:      {},
	EvtUserDisconnected: {},
	EvtActivityUpdated:  {},
	EvtReceiveMessage:   {},
	EvtMessageError:     {},
}

// Frame is the wire envelope: {"type": "...", "data": ...}. Data shape
// depends on the event kind.
type Frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ActivityPayload carries update_activity / activity_updated data.
type ActivityPayload struct {
	UserID   string `json:"userId"`
	Activity string `json:"activity"`
}

// SendMessagePayload carries send_message data.
type SendMessagePayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// ParseFrame decodes and validates the envelope. Unknown or missing types
// are malformed events; the caller drops them without closing the
// connection.
func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrMalformedEvent.WrapMsg("unparseable frame", "cause", err)
	}
	if _, ok := knownEvents[f.Type]; !ok {
		return nil, errs.ErrMalformedEvent.WrapMsg("unknown event type", "type", string(f.Type))
	}
	return f, nil
}

// DecodePayload decodes an object-shaped frame payload into T, tolerating
// loosely typed client input.
func DecodePayload[T any](f *Frame) (*T, error) {
	var m map[string]any
	if err := json.Unmarshal(f.Data, &m); err != nil {
		return nil, errs.ErrMalformedEvent.WrapMsg("payload is not an object", "type", string(f.Type), "cause", err)
	}
	out, err := decode.Map[T](m)
	if err != nil {
		return nil, errs.ErrMalformedEvent.WrapMsg("payload decode", "type", string(f.Type), "cause", err)
	}
	return out, nil
}

// DecodeUserID reads a user id payload, accepting the bare-string form
// ("alice") and the object form ({"userId": "alice"}).
func DecodeUserID(f *Frame) (string, error) {
	var s string
	if err := json.Unmarshal(f.Data, &s); err == nil && s != "" {
		return s, nil
	}
	var m map[string]any
	if err := json.Unmarshal(f.Data, &m); err != nil {
		return "", errs.ErrMalformedEvent.WrapMsg("user id payload", "type", string(f.Type))
	}
	id, err := decode.ReadString(m, "userId")
	if err != nil || id == "" {
		return "", errs.ErrMalformedEvent.WrapMsg("user id missing", "type", string(f.Type))
	}
	return id, nil
}

func mustFrame(t EventType, v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// all builders marshal plain structs/strings; this cannot fail
		panic(err)
	}
	raw, err := json.Marshal(Frame{Type: t, Data: data})
	if err != nil {
		panic(err)
	}
	return raw
}

func BuildUsersOnline(ids []string) []byte {
	if ids == nil {
		ids = []string{}
	}
	return mustFrame(EvtUsersOnline, ids)
}

func BuildUserConnected(userID string) []byte {
	return mustFrame(EvtUserConnected, userID)
}

func BuildUserDisconnected(userID string) []byte {
	return mustFrame(EvtUserDisconnected, userID)
}

func BuildActivityUpdated(userID, activity string) []byte {
	return mustFrame(EvtActivityUpdated, ActivityPayload{UserID: userID, Activity: activity})
}

func BuildReceiveMessage(msg *chatmodel.Message) []byte {
	return mustFrame(EvtReceiveMessage, msg)
}

func BuildMessageError(detail string) []byte {
	return mustFrame(EvtMessageError, detail)
}

func BuildSendMessage(senderID, receiverID, content string) []byte {
	return mustFrame(EvtSendMessage, SendMessagePayload{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	})
}

func BuildUpdateActivity(userID, activity string) []byte {
	return mustFrame(EvtUpdateActivity, ActivityPayload{UserID: userID, Activity: activity})
}
