package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PRelay/logger"
	chat "PRelay/service/chat"
	"PRelay/tools/safe"

	"github.com/gorilla/websocket"
)

// ConnState is the per-transport state machine. Registered and Active are
// behaviorally identical; any transport drop goes straight to
// Disconnected.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateRegistered
	StateActive
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateRegistered:
		return "Registered"
	case StateActive:
		return "Active"
	default:
		return "Disconnected"
	}
}

const (
	sessionWriteWait = 10 * time.Second
	sessionPongWait  = 60 * time.Second
)

// Session is a gateway connection plus the mirror it keeps consistent. It
// dials, registers the user, and applies every inbound frame to the
// mirror.
type Session struct {
	userID string
	ws     *websocket.Conn
	mirror *Mirror

	send      chan []byte
	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to the gateway websocket endpoint and registers userID.
func Dial(ctx context.Context, url, userID string) (*Session, error) {
	s := &Session{
		userID: userID,
		mirror: New(userID),
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return nil, err
	}
	s.ws = ws

	// register before pumping: the gateway answers with the online list
	if err := ws.WriteMessage(websocket.TextMessage, chat.BuildUserConnected(userID)); err != nil {
		_ = ws.Close()
		s.state.Store(int32(StateDisconnected))
		return nil, err
	}
	s.state.Store(int32(StateRegistered))

	safe.Go(s.readLoop)
	safe.Go(s.writeLoop)
	s.state.Store(int32(StateActive))
	return s, nil
}

func (s *Session) Mirror() *Mirror { return s.mirror }

func (s *Session) State() ConnState {
	return ConnState(s.state.Load())
}

// SendMessage relays content to receiverID through the gateway.
func (s *Session) SendMessage(receiverID, content string) error {
	return s.enqueue(chat.BuildSendMessage(s.userID, receiverID, content))
}

// UpdateActivity publishes a new activity label for the local user.
func (s *Session) UpdateActivity(activity string) error {
	return s.enqueue(chat.BuildUpdateActivity(s.userID, activity))
}

func (s *Session) enqueue(payload []byte) error {
	select {
	case <-s.done:
		return websocket.ErrCloseSent
	case s.send <- payload:
		return nil
	}
}

// Close tears the session down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateDisconnected))
		close(s.done)
		_ = s.ws.Close()
	})
}

func (s *Session) readLoop() {
	defer s.Close()

	_ = s.ws.SetReadDeadline(time.Now().Add(sessionPongWait))
	s.ws.SetPingHandler(func(appData string) error {
		_ = s.ws.SetReadDeadline(time.Now().Add(sessionPongWait))
		return s.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(sessionWriteWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			logger.Debugf("[mirror] read end user=%s err=%v", s.userID, err)
			return
		}
		frame, perr := chat.ParseFrame(data)
		if perr != nil {
			logger.Warnf("[mirror] drop malformed frame user=%s err=%v", s.userID, perr)
			continue
		}
		if aerr := s.mirror.Apply(frame); aerr != nil {
			logger.Warnf("[mirror] apply err user=%s type=%s err=%v", s.userID, frame.Type, aerr)
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case payload := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[mirror] write err user=%s err=%v", s.userID, err)
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
