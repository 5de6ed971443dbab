package client

import (
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/transport"
	"go.uber.org/zap"
)

// The Synchronizer plugs straight into a transport connection.
var _ transport.Handler = (*Synchronizer)(nil)

func (s *Synchronizer) OnConnect(c *transport.Conn) {
	if err := s.Connected(c); err != nil {
		s.log.Warn("join request not sent", zap.Error(err))
	}
}

func (s *Synchronizer) OnFrame(_ *transport.Conn, f protocol.Frame) {
	_ = s.Handle(f)
}

func (s *Synchronizer) OnFrameError(_ *transport.Conn, err error) {
	s.FrameFailed(err)
}

func (s *Synchronizer) OnLost(_ *transport.Conn, err error) {
	s.ConnectionLost(err)
}
