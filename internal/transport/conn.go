package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arwic/dominion/internal/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrSendQueueFull = errors.New("send queue full")
var ErrClosed = errors.New("connection closed")
var ErrRateLimited = errors.New("inbound frame rate exceeded")

// Handler receives a connection's lifecycle and frames. Calls for one
// connection come from its read goroutine, in arrival order.
type Handler interface {
	OnConnect(c *Conn)
	OnFrame(c *Conn, f protocol.Frame)
	OnFrameError(c *Conn, err error)
	OnLost(c *Conn, err error)
}

type Options struct {
	// ReceiveTimeout drops a peer that sends nothing for this long. Zero
	// disables it.
	ReceiveTimeout time.Duration
	ReceiveBuffer  int
	SendQueue      int
	// FrameRate limits inbound frames per second. Zero disables it.
	FrameRate  float64
	FrameBurst int
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ReceiveBuffer <= 0 {
		o.ReceiveBuffer = 8192
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	if o.FrameBurst <= 0 {
		o.FrameBurst = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Conn owns one socket: a read goroutine that slices the byte stream into
// frames and a writer goroutine that drains a bounded outbound queue.
type Conn struct {
	id      uint64
	raw     net.Conn
	remote  string
	handler Handler
	opts    Options
	log     *zap.Logger
	limiter *rate.Limiter

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	listening atomic.Bool
	stats     counters
}

func newConn(id uint64, raw net.Conn, remote string, h Handler, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		id:      id,
		raw:     raw,
		remote:  remote,
		handler: h,
		opts:    opts,
		log:     opts.Logger.With(zap.Uint64("conn_id", id), zap.String("remote", remote)),
		out:     make(chan []byte, opts.SendQueue),
		closed:  make(chan struct{}),
	}
	if opts.FrameRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.FrameRate), opts.FrameBurst)
	}
	c.listening.Store(true)
	return c
}

func (c *Conn) ID() uint64 { return c.id }

func (c *Conn) RemoteAddr() string { return c.remote }

func (c *Conn) Stats() Stats { return c.stats.snapshot() }

// Listening is false once the connection has been closed.
func (c *Conn) Listening() bool { return c.listening.Load() }

// Done is closed when the connection closes.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Send encodes f and queues it for the writer. It never blocks: a full queue
// marks the peer as a slow consumer and closes the connection.
func (c *Conn) Send(f protocol.Frame) error {
	buf, err := protocol.Encode(f.Kind, f.Items)
	if err != nil {
		return err
	}
	return c.enqueue(buf)
}

func (c *Conn) enqueue(buf []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- buf:
		return nil
	case <-c.closed:
		return ErrClosed
	default:
		c.log.Warn("send queue full, dropping slow peer", zap.Int("queue", cap(c.out)))
		_ = c.Close()
		return ErrSendQueueFull
	}
}

// Close shuts the socket once. Later calls return nil.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.listening.Store(false)
		close(c.closed)
		err = c.raw.Close()
	})
	return err
}

// CloseAfter closes the connection once d has elapsed, leaving time for
// queued frames to drain.
func (c *Conn) CloseAfter(d time.Duration) {
	if d <= 0 {
		_ = c.Close()
		return
	}
	time.AfterFunc(d, func() { _ = c.Close() })
}

// run serves the connection until it closes, then reports the loss.
func (c *Conn) run() {
	go c.writeLoop()
	err := c.readLoop()
	_ = c.Close()
	if err == nil {
		err = ErrClosed
	}
	c.handler.OnLost(c, err)
}

func (c *Conn) readLoop() error {
	buf := make([]byte, c.opts.ReceiveBuffer)
	var pending []byte
	for {
		if c.opts.ReceiveTimeout > 0 {
			_ = c.raw.SetReadDeadline(time.Now().Add(c.opts.ReceiveTimeout))
		}
		n, err := c.raw.Read(buf)
		if n > 0 {
			c.stats.bytesReceived.Add(uint64(n))
			pending = append(pending, buf[:n]...)
			frames, rest, derr := protocol.DecodeAll(pending)
			pending = append(pending[:0], rest...)
			c.deliver(frames)
			for _, ferr := range multierr.Errors(derr) {
				c.handler.OnFrameError(c, ferr)
			}
		}
		if err != nil {
			if !c.listening.Load() {
				return nil
			}
			return lostReason(err)
		}
	}
}

func (c *Conn) deliver(frames []protocol.Frame) {
	for _, f := range frames {
		c.stats.packetsReceived.Add(1)
		if c.limiter != nil && !c.limiter.Allow() {
			c.handler.OnFrameError(c, fmt.Errorf("%s: %w", f.Kind, ErrRateLimited))
			continue
		}
		c.handler.OnFrame(c, f)
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case buf := <-c.out:
			if _, err := c.raw.Write(buf); err != nil {
				if c.listening.Load() {
					c.log.Debug("write failed", zap.Error(err))
				}
				_ = c.Close()
				return
			}
			c.stats.packetsSent.Add(1)
			c.stats.bytesSent.Add(uint64(len(buf)))
		}
	}
}

func lostReason(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: peer closed the connection", protocol.ErrConnectionLost)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: receive timeout", protocol.ErrConnectionLost)
	}
	return fmt.Errorf("%w: %v", protocol.ErrConnectionLost, err)
}
