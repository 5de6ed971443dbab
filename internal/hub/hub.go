package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arwic/dominion/internal/engine"
	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/lobby"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/rules"
	"github.com/arwic/dominion/internal/session"
	"github.com/arwic/dominion/internal/store"
	"github.com/arwic/dominion/internal/transport"
	"github.com/arwic/dominion/internal/turn"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrNotInGame = errors.New("match has not started")

type HubMsg interface{ isHubMsg() }

type Connected struct{ Peer session.Peer }

type FrameReceived struct {
	Peer  session.Peer
	Frame protocol.Frame
}

type FrameFailed struct {
	Peer session.Peer
	Err  error
}

type ConnectionLost struct {
	Peer session.Peer
	Err  error
}

type TimerFired struct{ Turn int }

// ForceEndTurn ends the current turn on the host's behalf.
type ForceEndTurn struct{ Reply chan error }

type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Connected) isHubMsg()      {}
func (FrameReceived) isHubMsg()  {}
func (FrameFailed) isHubMsg()    {}
func (ConnectionLost) isHubMsg() {}
func (TimerFired) isHubMsg()     {}
func (ForceEndTurn) isHubMsg()   {}
func (GetState) isHubMsg()       {}
func (Shutdown) isHubMsg()       {}

// View is a race-free copy of the match for diagnostics.
type View struct {
	MatchID   uuid.UUID
	Phase     lobby.Phase
	Turn      int
	TimeLimit time.Duration
	Lobby     game.LobbyState
	Over      bool
	Result    turn.Result
}

type Options struct {
	Rules         *rules.Catalog
	Store         store.Store
	PasswordHash  []byte
	TurnTimeLimit time.Duration
	KickGrace     time.Duration
	// Seed drives board generation. Zero picks one from the clock.
	Seed   int64
	Logger *zap.Logger
}

// Hub is the match actor. One goroutine owns the lobby, the world and the
// turn state; connections talk to it through the inbox.
type Hub struct {
	inbox  chan HubMsg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	opts     Options
	log      *zap.Logger
	sessions *session.Registry
	lobby    *lobby.Coordinator
	world    *engine.World
	turns    *turn.Orchestrator
	matchID  uuid.UUID
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sessions := session.NewRegistry()
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		opts:     opts,
		log:      log.Named("hub"),
		sessions: sessions,
		lobby: lobby.New(sessions, lobby.Options{
			PasswordHash: opts.PasswordHash,
			Store:        opts.Store,
			Rules:        opts.Rules,
			KickGrace:    opts.KickGrace,
			Logger:       log,
		}),
		matchID: uuid.New(),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the loop has shut down.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) post(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

// State asks the loop for a View.
func (h *Hub) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case h.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-h.done:
		return View{}, context.Canceled
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// EndTurn forces the current turn to end.
func (h *Hub) EndTurn(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case h.inbox <- ForceEndTurn{Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return context.Canceled
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) OnConnect(c *transport.Conn) { h.post(Connected{Peer: c}) }

func (h *Hub) OnFrame(c *transport.Conn, f protocol.Frame) {
	h.post(FrameReceived{Peer: c, Frame: f})
}

func (h *Hub) OnFrameError(c *transport.Conn, err error) {
	h.post(FrameFailed{Peer: c, Err: err})
}

func (h *Hub) OnLost(c *transport.Conn, err error) {
	h.post(ConnectionLost{Peer: c, Err: err})
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connected:
				h.log.Debug("peer connected", peerFields(msg.Peer)...)

			case FrameReceived:
				if err := h.handleFrame(msg.Peer, msg.Frame); err != nil {
					h.logFrameError(msg.Peer, msg.Frame.Kind, err)
				}

			case FrameFailed:
				h.logFrameError(msg.Peer, protocol.KindNone, msg.Err)

			case ConnectionLost:
				h.handleLost(msg.Peer, msg.Err)

			case TimerFired:
				if h.turns == nil {
					break
				}
				if _, err := h.turns.Timeout(msg.Turn); err != nil {
					h.log.Warn("timeout turn end incomplete", zap.Int("turn", msg.Turn), zap.Error(err))
				}

			case ForceEndTurn:
				msg.Reply <- h.forceEndTurn()

			case GetState:
				msg.Reply <- h.view()

			case Shutdown:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	if h.turns != nil {
		h.turns.Stop()
	}
	var errs error
	for _, s := range h.sessions.Snapshot() {
		errs = multierr.Append(errs, s.Peer.Close())
	}
	if errs != nil {
		h.log.Debug("closing sessions", zap.Error(errs))
	}
	h.log.Info("hub stopped")
}

func (h *Hub) handleFrame(peer session.Peer, f protocol.Frame) error {
	s, ok := h.sessions.ByPeer(peer.ID())
	if !ok {
		if f.Kind == protocol.KindLobbyInit {
			return h.join(peer, f)
		}
		return &protocol.ProtocolError{Kind: f.Kind, Phase: "unjoined"}
	}
	phase := h.lobby.Phase()
	if f.Kind == protocol.KindLobbyInit || f.Kind.Lobby() != (phase == lobby.PhaseLobby) {
		return &protocol.ProtocolError{Kind: f.Kind, Phase: phase.String()}
	}
	if phase == lobby.PhaseLobby {
		return h.handleLobbyFrame(s, f)
	}
	return h.handleGameFrame(s, f)
}

func (h *Hub) join(peer session.Peer, f protocol.Frame) error {
	name, err := protocol.Item[string](f, 0)
	if err != nil {
		return err
	}
	password, err := protocol.Item[string](f, 1)
	if err != nil {
		return err
	}
	_, err = h.lobby.Join(h.ctx, peer, name, password)
	return err
}

func (h *Hub) handleLobbyFrame(s *session.Session, f protocol.Frame) error {
	peerID := s.Peer.ID()
	switch f.Kind {
	case protocol.KindLobbyEmpireSelect:
		id, err := protocol.Item[int](f, 0)
		if err != nil {
			return err
		}
		return h.lobby.SelectEmpire(peerID, id)

	case protocol.KindLobbyStateSync:
		settings, err := protocol.Item[game.LobbySettings](f, 0)
		if err != nil {
			return err
		}
		return h.lobby.UpdateSettings(peerID, settings)

	case protocol.KindLobbyKick:
		target, err := protocol.Item[int](f, 0)
		if err != nil {
			return err
		}
		return h.lobby.Kick(peerID, target)

	case protocol.KindLobbyBan:
		target, err := protocol.Item[int](f, 0)
		if err != nil {
			return err
		}
		return h.lobby.Ban(h.ctx, peerID, target)

	case protocol.KindLobbyStartGame:
		return h.startGame(peerID)
	}
	return &protocol.ProtocolError{Kind: f.Kind, Phase: lobby.PhaseLobby.String()}
}

// startGame builds the world, moves the match out of the lobby and sends
// turn 0. The match stays in the lobby when the world cannot be built.
func (h *Hub) startGame(peerID uint64) error {
	if err := h.lobby.CanStart(peerID); err != nil {
		return err
	}
	settings := h.lobby.Settings()

	seed := h.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	board := engine.GenerateBoard(settings.WorldType, settings.WorldSize, seed)
	world := engine.NewWorld(h.opts.Rules, board, h.log)

	var ids []int
	for _, s := range h.sessions.Snapshot() {
		world.AddPlayer(game.BasicPlayer{InstanceID: s.InstanceID, Name: s.Name, EmpireID: s.EmpireID, IsHost: s.IsHost})
		ids = append(ids, s.InstanceID)
	}
	if _, err := world.SpawnStart(ids); err != nil {
		return fmt.Errorf("failed to place starting units: %w", err)
	}
	if err := h.lobby.Start(peerID); err != nil {
		return err
	}
	h.world = world

	errs := h.sessions.Broadcast(protocol.NewFrame(protocol.KindLobbyStartGame, *board))
	h.turns = turn.New(h.sessions, h.world, turn.Options{
		TimeLimit:  h.opts.TurnTimeLimit,
		OnTimeout:  func(t int) { h.post(TimerFired{Turn: t}) },
		OnGameOver: h.recordResult,
		Settings:   settings,
		Logger:     h.log,
	})
	h.log.Info("game started", zap.Stringer("match", h.matchID), zap.Int64("seed", seed), zap.Int("players", len(ids)))
	return multierr.Append(errs, h.turns.Begin())
}

func (h *Hub) handleLost(peer session.Peer, reason error) {
	s, ok := h.lobby.Leave(peer.ID())
	if !ok {
		h.log.Debug("peer gone", append(peerFields(peer), zap.Error(reason))...)
		return
	}
	h.log.Info("session lost", append(peerFields(peer), zap.Int("session", s.InstanceID), zap.Error(reason))...)
	if h.turns != nil {
		if err := h.turns.SessionLeft(); err != nil {
			h.log.Warn("turn re-evaluation incomplete", zap.Error(err))
		}
	}
}

func (h *Hub) forceEndTurn() error {
	if h.turns == nil {
		return ErrNotInGame
	}
	return h.turns.EndTurn(game.ReasonHostForced)
}

func (h *Hub) recordResult(r turn.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.opts.Store.RecordResult(ctx, store.MatchResult{
		ID:         h.matchID,
		WinnerID:   r.WinnerID,
		WinnerName: r.WinnerName,
		Victory:    r.Victory.String(),
		Turns:      r.Turns,
		Players:    h.sessions.Len(),
	})
	if err != nil {
		h.log.Error("failed to record result", zap.Stringer("match", h.matchID), zap.Error(err))
	}
}

func (h *Hub) view() View {
	v := View{MatchID: h.matchID, Phase: h.lobby.Phase(), Lobby: h.lobby.State(), TimeLimit: h.opts.TurnTimeLimit}
	if h.turns != nil {
		v.Turn = h.turns.Turn()
		v.Result, v.Over = h.turns.Result()
	}
	return v
}

func (h *Hub) logFrameError(peer session.Peer, kind protocol.Kind, err error) {
	fields := append(peerFields(peer), zap.Stringer("kind", kind), zap.Error(err))
	switch {
	case errors.Is(err, rules.ErrFactoryOutOfSync):
		h.log.Error("rules out of sync", fields...)
	case errors.Is(err, protocol.ErrRejected):
		h.log.Info("join refused", fields...)
	default:
		h.log.Warn("frame dropped", fields...)
	}
}

func peerFields(p session.Peer) []zap.Field {
	return []zap.Field{zap.Uint64("conn_id", p.ID()), zap.String("remote", p.RemoteAddr())}
}
