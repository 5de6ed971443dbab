package transport

import (
	"context"
	"net"
)

// Dial connects to a server and starts serving the connection in the
// background. h.OnConnect runs before Dial returns.
func Dial(ctx context.Context, addr string, h Handler, opts Options) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return Attach(raw, h, opts), nil
}

// Attach serves an established stream as a client connection.
func Attach(raw net.Conn, h Handler, opts Options) *Conn {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.Named("transport")
	c := newConn(1, raw, raw.RemoteAddr().String(), h, opts)
	h.OnConnect(c)
	go c.run()
	return c
}
