package transport

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/arwic/dominion/internal/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrServerClosed = errors.New("server closed")

type ServerOptions struct {
	Options
	// MaxConnections bounds how many peers are served at once. Extra peers
	// wait in the listener backlog.
	MaxConnections int64
}

// Server accepts peers and serves each on its own goroutine. The connection
// registry is safe for concurrent use; broadcasts work on a snapshot.
type Server struct {
	handler Handler
	opts    ServerOptions
	log     *zap.Logger
	sem     *semaphore.Weighted
	nextID  atomic.Uint64

	mu        sync.Mutex
	conns     map[uint64]*Conn
	listeners []net.Listener
	closed    bool
	wg        sync.WaitGroup
}

func NewServer(h Handler, opts ServerOptions) *Server {
	opts.Options = opts.Options.withDefaults()
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 16
	}
	log := opts.Logger.Named("transport")
	opts.Logger = log
	return &Server{
		handler: h,
		opts:    opts,
		log:     log,
		sem:     semaphore.NewWeighted(opts.MaxConnections),
		conns:   make(map[uint64]*Conn),
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		raw, err := ln.Accept()
		if err != nil {
			s.sem.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept failed", zap.Error(err))
				continue
			}
			return err
		}
		go func() {
			defer s.sem.Release(1)
			s.serve(ctx, raw, raw.RemoteAddr().String())
		}()
	}
}

// ServeConn serves an already established stream, such as a bridged
// websocket, and blocks until it closes. It counts toward MaxConnections.
func (s *Server) ServeConn(ctx context.Context, raw net.Conn, remote string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		_ = raw.Close()
		return err
	}
	defer s.sem.Release(1)
	if !s.serve(ctx, raw, remote) {
		return ErrServerClosed
	}
	return nil
}

func (s *Server) serve(ctx context.Context, raw net.Conn, remote string) bool {
	c := newConn(s.nextID.Add(1), raw, remote, s.handler, s.opts.Options)
	if !s.add(c) {
		_ = raw.Close()
		return false
	}
	defer s.remove(c)

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	c.log.Info("peer connected")
	s.handler.OnConnect(c)
	c.run()
	return true
}

func (s *Server) add(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *Server) remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) snapshot() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Server) Conn(id uint64) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	return c, ok
}

func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// SendToAll encodes f once and queues it on every live connection.
func (s *Server) SendToAll(f protocol.Frame) error {
	buf, err := protocol.Encode(f.Kind, f.Items)
	if err != nil {
		return err
	}
	var errs error
	for _, c := range s.snapshot() {
		errs = multierr.Append(errs, c.enqueue(buf))
	}
	return errs
}

// Stats returns per-connection counters ordered by connection ID.
func (s *Server) Stats() []ConnStats {
	conns := s.snapshot()
	out := make([]ConnStats, 0, len(conns))
	for _, c := range conns {
		out = append(out, ConnStats{ID: c.id, Remote: c.remote, Stats: c.Stats()})
	}
	return out
}

// Close stops accepting, closes every connection and waits for their
// handlers to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var errs error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, err)
		}
	}
	for _, c := range conns {
		errs = multierr.Append(errs, c.Close())
	}
	s.wg.Wait()
	return errs
}
