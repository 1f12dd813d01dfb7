package chat

import (
	"context"
	"time"

	"PRelay/logger"
	chatmodel "PRelay/module/chat/model"
)

// MessageStore is the external persistence collaborator. Create must not
// expose partial writes; any failure aborts the relay.
type MessageStore interface {
	Create(ctx context.Context, senderID, receiverID, content string) (*chatmodel.Message, error)
}

// Forwarder pushes a persisted message toward other gateway nodes when the
// receiver is not attached locally. Optional.
type Forwarder interface {
	Forward(ctx context.Context, msg *chatmodel.Message) error
}

// Relay implements persist-then-deliver: nothing is visible to any peer
// until the store call resolves, and the store is the single source of
// truth. Live delivery on top of it is best effort.
type Relay struct {
	store   MessageStore
	reg     *Registry
	fwd     Forwarder
	timeout time.Duration
}

func NewRelay(store MessageStore, reg *Registry, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Relay{store: store, reg: reg, timeout: timeout}
}

// SetForwarder attaches the inter-gateway bridge. Call before serving.
func (r *Relay) SetForwarder(f Forwarder) { r.fwd = f }

// Send persists the message and then delivers it to the receiver's and
// sender's live connections, each looked up independently. On store
// failure only the sender's connection learns about it; there is no retry
// and no broadcast. The persistence call is bounded by the relay timeout
// and expiry counts as a store failure.
func (r *Relay) Send(ctx context.Context, senderID, receiverID, content string) error {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.store.Create(cctx, senderID, receiverID, content)
	if err != nil {
		logger.Errorf("[relay] store failed sender=%s receiver=%s err=%v", senderID, receiverID, err)
		if sender, ok := r.reg.Lookup(senderID); ok {
			sender.Deliver(BuildMessageError("message could not be saved"))
		}
		return err
	}

	payload := BuildReceiveMessage(msg)

	receiverLocal := false
	if receiver, ok := r.reg.Lookup(receiverID); ok {
		receiver.Deliver(payload)
		receiverLocal = true
	}
	// the sender gets its own message echoed through the same event, so
	// sender-side state derives from the identical stream as the receiver
	if sender, ok := r.reg.Lookup(senderID); ok {
		sender.Deliver(payload)
	}

	if !receiverLocal && r.fwd != nil {
		if err := r.fwd.Forward(ctx, msg); err != nil {
			logger.Warnf("[relay] forward failed id=%s receiver=%s err=%v", msg.ID, receiverID, err)
		}
	}
	return nil
}
