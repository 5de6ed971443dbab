package session

import (
	"net"

	"github.com/arwic/dominion/internal/protocol"
)

// Peer is the connection a session owns. *transport.Conn satisfies it.
type Peer interface {
	ID() uint64
	RemoteAddr() string
	Send(protocol.Frame) error
	Close() error
}

// Session is a connected player's server-side identity for one match.
type Session struct {
	InstanceID int
	Peer       Peer
	Name       string
	EmpireID   int
	IsHost     bool
	EndedTurn  bool
}

// Host returns the remote address without its port.
func (s *Session) Host() string {
	return HostOf(s.Peer.RemoteAddr())
}

func HostOf(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
