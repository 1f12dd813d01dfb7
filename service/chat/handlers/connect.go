// Package handlers holds the per-event handlers the gateway dispatch loop
// invokes. Each handler decodes its payload shape and calls into the
// server; payload errors are reported as malformed events and dropped.
package handlers

import (
	"PRelay/service/chat"
)

// ConnectHandler processes the client's user_connected event: the moment a
// transport identifies its user, the registry binds it and presence goes
// out.
type ConnectHandler struct{}

func NewConnectHandler() chat.Handler { return &ConnectHandler{} }

func (h *ConnectHandler) Type() chat.EventType { return chat.EvtUserConnected }

func (h *ConnectHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	userID, err := chat.DecodeUserID(f)
	if err != nil {
		return err
	}
	ctx.S.RegisterClient(c, userID)
	return nil
}
