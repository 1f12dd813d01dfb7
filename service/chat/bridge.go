package chat

import (
	"context"
	"encoding/json"

	"PRelay/logger"
	chatmodel "PRelay/module/chat/model"
	"PRelay/service/natsx"
)

// DeliverSubject is the shared bus every gateway node listens on. A node
// publishes here when a persisted message targets a user it does not hold
// locally; each node delivers to its own connections only.
const DeliverSubject = "prelay.deliver"

type deliverEnvelope struct {
	Origin  string             `json:"origin"`
	Message *chatmodel.Message `json:"message"`
}

// Bridge is the Relay's Forwarder over NATS.
type Bridge struct {
	nats   *natsx.Client
	nodeID string
}

func NewBridge(nc *natsx.Client, nodeID string) *Bridge {
	return &Bridge{nats: nc, nodeID: nodeID}
}

func (b *Bridge) Forward(_ context.Context, msg *chatmodel.Message) error {
	data, err := json.Marshal(deliverEnvelope{Origin: b.nodeID, Message: msg})
	if err != nil {
		return err
	}
	return b.nats.Publish(DeliverSubject, data)
}

// AttachBridge wires the bridge into the relay and starts consuming the
// deliver bus. Envelopes from this node are skipped; the origin already
// handled its local connections before forwarding.
func (s *Server) AttachBridge(b *Bridge) error {
	s.relay.SetForwarder(b)
	_, err := b.nats.Subscribe(DeliverSubject, func(data []byte) {
		var env deliverEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warnf("[bridge] bad envelope: %v", err)
			return
		}
		if env.Origin == b.nodeID || env.Message == nil {
			return
		}
		if receiver, ok := s.reg.Lookup(env.Message.ReceiverID); ok {
			receiver.Deliver(BuildReceiveMessage(env.Message))
		}
	})
	return err
}
