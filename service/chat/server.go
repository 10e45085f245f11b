package chat

import (
	"context"

	chatmodel "Chatty/module/chat/model"
	"Chatty/service/storage"
	"Chatty/tools/ids"
)

// Options 组装 gateway 所需的外部协作方。
type Options struct {
	GatewayID string
	Users     SenderLookup
	Seen      SeenStore
	Unread    storage.UnreadStore
	Relay     Relay // 可空：单节点
	JWTVerify func(token string) (string, error)

	FanoutWorkers int
	FanoutQueue   int
	SendQueueSize int
}

// Server owns the realtime core: registry, presence broadcaster, fan-out
// dispatcher and unread coordinator. HTTP handlers call into it after the
// persistence write succeeds.
type Server struct {
	gwID      string
	reg       *Registry
	fanout    *Fanout
	presence  *Broadcaster
	unread    *Coordinator
	disp      *Dispatcher
	jwtVerify func(token string) (string, error)
	sendQueue int
}

func NewServer(opts Options) *Server {
	if opts.GatewayID == "" {
		opts.GatewayID = "gw-" + ids.GenerateString()
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 256
	}

	reg := NewRegistry()
	fanout := NewFanout(opts.FanoutWorkers, opts.FanoutQueue)
	unread := NewCoordinator(reg, opts.Unread, opts.Seen)
	disp := NewDispatcher(reg, opts.Users, unread, opts.Relay, opts.GatewayID)
	presence := NewBroadcaster(reg, fanout)

	return &Server{
		gwID:      opts.GatewayID,
		reg:       reg,
		fanout:    fanout,
		presence:  presence,
		unread:    unread,
		disp:      disp,
		jwtVerify: opts.JWTVerify,
		sendQueue: opts.SendQueueSize,
	}
}

func (s *Server) GatewayID() string       { return s.gwID }
func (s *Server) Registry() *Registry     { return s.reg }
func (s *Server) Unread() *Coordinator    { return s.unread }
func (s *Server) Dispatcher() *Dispatcher { return s.disp }

// Dispatch 持久化成功后的唯一入口。
func (s *Server) Dispatch(ctx context.Context, m *chatmodel.Message, originConnID string) error {
	return s.disp.Dispatch(ctx, m, originConnID)
}

// MarkSeen HTTP 已读入口。
func (s *Server) MarkSeen(ctx context.Context, viewerID, peerID string) error {
	return s.unread.OnMarkSeen(ctx, viewerID, peerID)
}

func (s *Server) Stop() {
	s.presence.Stop()
	for _, c := range s.reg.AllClients() {
		c.Close()
	}
}
