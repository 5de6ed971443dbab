package transport

import "sync/atomic"

// Stats are monotonically increasing traffic counters. They are diagnostic
// only.
type Stats struct {
	PacketsSent     uint64 `json:"packets_sent"`
	PacketsReceived uint64 `json:"packets_received"`
	BytesSent       uint64 `json:"bytes_sent"`
	BytesReceived   uint64 `json:"bytes_received"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		PacketsSent:     s.PacketsSent + o.PacketsSent,
		PacketsReceived: s.PacketsReceived + o.PacketsReceived,
		BytesSent:       s.BytesSent + o.BytesSent,
		BytesReceived:   s.BytesReceived + o.BytesReceived,
	}
}

type counters struct {
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
	}
}

// ConnStats pairs a connection's counters with its identity.
type ConnStats struct {
	ID     uint64 `json:"id"`
	Remote string `json:"remote"`
	Stats
}
