package handlers

import (
	"PRelay/service/chat"
	"PRelay/tools/errs"
)

// ActivityHandler processes update_activity: upsert the label and fan the
// delta out. Never triggers a users_online broadcast.
type ActivityHandler struct{}

func NewActivityHandler() chat.Handler { return &ActivityHandler{} }

func (h *ActivityHandler) Type() chat.EventType { return chat.EvtUpdateActivity }

func (h *ActivityHandler) Handle(ctx *chat.Context, f *chat.Frame, _ *chat.Client) error {
	p, err := chat.DecodePayload[chat.ActivityPayload](f)
	if err != nil {
		return err
	}
	if p.UserID == "" || p.Activity == "" {
		return errs.ErrMalformedEvent.WrapMsg("userId and activity are required")
	}
	ctx.S.UpdateActivity(p.UserID, p.Activity)
	return nil
}
