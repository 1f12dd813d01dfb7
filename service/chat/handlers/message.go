package handlers

import (
	"context"

	"PRelay/service/chat"
	"PRelay/tools/errs"
)

// MessageHandler processes send_message through the relay. The store
// outcome decides everything: failure notifies the sender only, success
// delivers to whichever of the two endpoints is connected.
type MessageHandler struct{}

func NewMessageHandler() chat.Handler { return &MessageHandler{} }

func (h *MessageHandler) Type() chat.EventType { return chat.EvtSendMessage }

func (h *MessageHandler) Handle(ctx *chat.Context, f *chat.Frame, _ *chat.Client) error {
	p, err := chat.DecodePayload[chat.SendMessagePayload](f)
	if err != nil {
		return err
	}
	if p.SenderID == "" || p.ReceiverID == "" || p.Content == "" {
		return errs.ErrMalformedEvent.WrapMsg("senderId, receiverId and content are required")
	}
	// relay errors were already routed to the sender's connection; the
	// dispatch loop only logs them
	return ctx.S.Relay().Send(context.Background(), p.SenderID, p.ReceiverID, p.Content)
}

// RegisterAll wires the default handler set into the server's dispatcher.
func RegisterAll(s *chat.Server) {
	s.Disp().Register(NewConnectHandler())
	s.Disp().Register(NewActivityHandler())
	s.Disp().Register(NewMessageHandler())
}
