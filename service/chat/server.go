// Package chat is the presence-and-relay core: it owns the connection
// registry, fans presence and activity changes out to every live peer, and
// relays chat messages with durability-before-delivery semantics.
package chat

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"PRelay/logger"
	storage "PRelay/service/storage"
	"PRelay/tools/errs"
	"PRelay/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	NodeID   string
	Store    MessageStore
	Presence *storage.PresenceManager // optional redis mirror

	RelayTimeout   time.Duration
	SendQueueSize  int
	FanoutWorkers  int
	FanoutQueue    int
	PingInterval   time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o *Options) norm() {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.FanoutWorkers <= 0 {
		o.FanoutWorkers = 1
	}
	if o.FanoutQueue <= 0 {
		o.FanoutQueue = 1024
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 1 << 16
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the registry, broadcaster, relay and dispatcher together
// and drives one read loop per websocket connection.
type Server struct {
	opts   Options
	reg    *Registry
	fanout *Fanout
	bcast  *Broadcaster
	relay  *Relay
	disp   *Dispatcher

	// presenceMu serializes each registry/activity mutation with the
	// submission of its broadcast, so frames reach the fan-out queue in
	// mutation order. The registry snapshot alone cannot guarantee that:
	// two mutations could otherwise enqueue their full lists inverted.
	presenceMu sync.Mutex
}

func NewServer(opts Options) *Server {
	opts.norm()
	reg := NewRegistry()
	fanout := NewFanout(opts.FanoutWorkers, opts.FanoutQueue)
	s := &Server{
		opts:   opts,
		reg:    reg,
		fanout: fanout,
		bcast:  NewBroadcaster(fanout),
		relay:  NewRelay(opts.Store, reg, opts.RelayTimeout),
		disp:   NewDispatcher(),
	}
	return s
}

func (s *Server) Registry() *Registry { return s.reg }

func (s *Server) Relay() *Relay { return s.relay }

func (s *Server) Disp() *Dispatcher { return s.disp }

func (s *Server) Broadcaster() *Broadcaster { return s.bcast }

func (s *Server) NodeID() string { return s.opts.NodeID }

// HandleWS upgrades the request and runs the connection's event loop until
// the transport drops. Malformed frames are logged and skipped; they never
// terminate the connection or touch registry state.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(uuid.NewString(), ws, s.opts.SendQueueSize)
	safe.Go(func() {
		client.writePump(pumpConfig{
			pingInterval: s.opts.PingInterval,
			writeWait:    s.opts.WriteWait,
		})
	})

	ws.SetReadLimit(s.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		s.refreshPresence(client)
		return nil
	})

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[ws] drop malformed frame conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		h := s.disp.Get(frame.Type)
		if h == nil {
			logger.Warnf("[ws] no handler conn=%s type=%s", client.ConnID, frame.Type)
			continue
		}
		if herr := h.Handle(&Context{S: s}, frame, client); herr != nil {
			// handler errors are per-event; the connection lives on
			if errs.ErrMalformedEvent.Is(herr) {
				logger.Warnf("[ws] malformed event conn=%s type=%s err=%v", client.ConnID, frame.Type, herr)
			} else {
				logger.Errorf("[ws] handler err conn=%s type=%s err=%v", client.ConnID, frame.Type, herr)
			}
			continue
		}
	}

	s.Disconnect(client)
}

// RegisterClient binds the connection to a user identity, evicting any
// previous connection for that user, and announces the new presence. The
// snapshot is taken under the registry lock and the broadcast is queued
// under presenceMu, so peers observe full lists in mutation order.
func (s *Server) RegisterClient(client *Client, userID string) {
	client.UserID = userID

	s.presenceMu.Lock()
	evicted, snap := s.reg.Register(client)
	s.bcast.Connected(snap, userID)
	s.presenceMu.Unlock()

	if evicted != nil {
		logger.Infof("[ws] evict stale conn user=%s old=%s new=%s", userID, evicted.ConnID, client.ConnID)
		evicted.Close()
	}

	if s.opts.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.opts.Presence.Online(ctx, userID); err != nil {
			logger.Warnf("[presence] online mirror user=%s err=%v", userID, err)
		}
		if err := s.opts.Presence.SetActivity(ctx, userID, ActivityOnline); err != nil {
			logger.Warnf("[presence] activity mirror user=%s err=%v", userID, err)
		}
	}
	logger.Infof("[ws] registered user=%s conn=%s online=%d", userID, client.ConnID, len(snap.Online))
}

// UpdateActivity applies an activity change for a registered user and
// broadcasts the delta. Updates for users without a live connection are
// ignored.
func (s *Server) UpdateActivity(userID, activity string) {
	s.presenceMu.Lock()
	conns, ok := s.reg.SetActivity(userID, activity)
	if ok {
		s.bcast.Activity(conns, userID, activity)
	}
	s.presenceMu.Unlock()
	if !ok {
		logger.Debugf("[ws] activity for unregistered user=%s ignored", userID)
		return
	}

	if s.opts.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.opts.Presence.SetActivity(ctx, userID, activity); err != nil {
			logger.Warnf("[presence] activity mirror user=%s err=%v", userID, err)
		}
	}
}

// Disconnect tears a connection down: registry removal, presence
// broadcast, redis mirror cleanup. Safe to call for connections that were
// never registered or were already evicted; those produce no broadcast.
func (s *Server) Disconnect(client *Client) {
	client.Close()

	s.presenceMu.Lock()
	userID, snap, ok := s.reg.RemoveByConn(client.ConnID)
	if ok {
		s.bcast.Disconnected(snap, userID)
	}
	s.presenceMu.Unlock()
	if !ok {
		return
	}

	if s.opts.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.opts.Presence.Offline(ctx, userID); err != nil {
			logger.Warnf("[presence] offline mirror user=%s err=%v", userID, err)
		}
	}
	logger.Infof("[ws] disconnected user=%s conn=%s online=%d", userID, client.ConnID, len(snap.Online))
}

func (s *Server) refreshPresence(client *Client) {
	if s.opts.Presence == nil || client.UserID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.opts.Presence.Refresh(ctx, client.UserID); err != nil {
		logger.Debugf("[presence] refresh user=%s err=%v", client.UserID, err)
	}
}

// Shutdown closes every live connection, clears the redis mirror for the
// users attached here, and stops the fan-out workers.
func (s *Server) Shutdown(ctx context.Context) {
	for _, c := range s.reg.Conns() {
		if s.opts.Presence != nil && c.UserID != "" {
			if err := s.opts.Presence.Offline(ctx, c.UserID); err != nil {
				logger.Debugf("[presence] shutdown offline user=%s err=%v", c.UserID, err)
			}
		}
		c.Close()
	}
	s.fanout.Stop()
}
