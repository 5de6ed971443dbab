package client

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/rules"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrUnknownUnit  = errors.New("unknown unit")
	ErrUnknownCity  = errors.New("unknown city")
	ErrNoRules      = errors.New("rules not received yet")
)

// DefaultMaxFailures is how many consecutive bad frames are tolerated.
const DefaultMaxFailures = 3

const reasonMalformed = "too many malformed frames"

// Sender is the outbound half of a connection.
type Sender interface {
	Send(f protocol.Frame) error
	Close() error
}

type Options struct {
	Name     string
	Password string
	// MaxFailures consecutive bad frames are tolerated; one more disconnects.
	MaxFailures int
	Logger      *zap.Logger
}

// GameOver is the match result as announced by the server.
type GameOver struct {
	WinnerID int
	Victory  game.VictoryType
}

// Synchronizer mirrors the server's state for one local player. Frames come
// in from the connection's read goroutine; accessors may be called from any
// goroutine.
type Synchronizer struct {
	mu   sync.RWMutex
	opts Options
	log  *zap.Logger
	out  Sender

	rules  *rules.Catalog
	player game.Player
	lobby  game.LobbyState
	board  *game.Board
	units  map[int]game.Unit
	cities map[int]game.City

	turn      int
	timeLimit time.Duration
	reason    game.TurnEndReason
	inTurn    bool
	phase     Phase
	ended     bool
	over      *GameOver

	selectedUnit    int
	selectedCity    int
	selectedCommand game.UnitCommandKind

	failures int
	closed   bool
	lostWhy  string
	done     chan struct{}

	cache  *Cache
	events broker
}

func New(opts Options) *Synchronizer {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		opts:   opts,
		log:    log.Named("client"),
		units:  make(map[int]game.Unit),
		cities: make(map[int]game.City),
		done:   make(chan struct{}),
		cache:  NewCache(),
	}
}

// Subscribe returns a channel of change notifications. Delivery never blocks
// the network path: a full buffer drops events. The channel is closed on
// disconnect.
func (s *Synchronizer) Subscribe(buffer int) <-chan Event {
	return s.events.subscribe(buffer)
}

// Done is closed once the connection is gone.
func (s *Synchronizer) Done() <-chan struct{} { return s.done }

// Connected binds the outbound connection and asks to join.
func (s *Synchronizer) Connected(out Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = out
	return out.Send(protocol.NewFrame(protocol.KindLobbyInit, s.opts.Name, s.opts.Password))
}

// Handle applies one server frame. A failure counts toward the disconnect
// threshold; a success resets the count.
func (s *Synchronizer) Handle(f protocol.Frame) error {
	if f.Noop() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	if err := s.apply(f); err != nil {
		s.failLocked(f.Kind, err)
		return err
	}
	s.failures = 0
	return nil
}

// FrameFailed counts a frame that could not be decoded.
func (s *Synchronizer) FrameFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.failLocked(protocol.KindNone, err)
	}
}

// ConnectionLost tears the session down. A reason given earlier by a kick
// or ban is kept.
func (s *Synchronizer) ConnectionLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason := "connection lost"
	if err != nil {
		reason = err.Error()
	}
	s.disconnectLocked(reason)
}

func (s *Synchronizer) failLocked(kind protocol.Kind, err error) {
	s.failures++
	fields := []zap.Field{zap.Stringer("kind", kind), zap.Int("failures", s.failures), zap.Error(err)}
	if errors.Is(err, rules.ErrFactoryOutOfSync) {
		s.log.Error("rules out of sync", fields...)
	} else {
		s.log.Warn("frame dropped", fields...)
	}
	if s.failures > s.opts.MaxFailures {
		s.disconnectLocked(reasonMalformed)
	}
}

func (s *Synchronizer) disconnectLocked(reason string) {
	if s.closed {
		return
	}
	s.closed = true
	s.lostWhy = reason
	s.inTurn = false
	if s.out != nil {
		_ = s.out.Close()
	}
	s.log.Info("disconnected", zap.String("reason", reason))
	s.events.publish(Event{Kind: EventDisconnected, Reason: reason})
	s.events.close()
	close(s.done)
}

func (s *Synchronizer) apply(f protocol.Frame) error {
	switch f.Kind {
	case protocol.KindLobbyInit:
		player, err := protocol.Item[game.Player](f, 0)
		if err != nil {
			return err
		}
		catalog, err := protocol.Item[rules.Catalog](f, 1)
		if err != nil {
			return err
		}
		s.player = player
		s.rules = &catalog
		s.events.publish(Event{Kind: EventPlayer})

	case protocol.KindLobbyStateSync:
		st, err := protocol.Item[game.LobbyState](f, 0)
		if err != nil {
			return err
		}
		s.lobby = st
		for _, p := range st.Players {
			if p.InstanceID == s.player.InstanceID {
				s.player.Name, s.player.EmpireID, s.player.IsHost = p.Name, p.EmpireID, p.IsHost
			}
		}
		s.events.publish(Event{Kind: EventLobby})

	case protocol.KindLobbyStartGame:
		board, err := protocol.Item[game.Board](f, 0)
		if err != nil {
			return err
		}
		s.board = &board
		s.cache.Reset(board.Width, board.Height)
		s.events.publish(Event{Kind: EventBoard})

	case protocol.KindTurnData:
		return s.applyTurnData(f)

	case protocol.KindPlayerUpdate:
		p, err := protocol.Item[game.Player](f, 0)
		if err != nil {
			return err
		}
		if p.InstanceID != s.player.InstanceID {
			return fmt.Errorf("player-update for player %d: %w", p.InstanceID, protocol.ErrUnexpectedKind)
		}
		s.player = p
		s.events.publish(Event{Kind: EventPlayer})
		s.advancePhase()

	case protocol.KindTileUpdate:
		t, err := protocol.Item[game.Tile](f, 0)
		if err != nil {
			return err
		}
		if s.board == nil {
			return &protocol.ProtocolError{Kind: f.Kind, Phase: "lobby"}
		}
		if !s.board.Set(t) {
			return &protocol.FrameError{Reason: fmt.Sprintf("tile (%d,%d) off the board", t.X, t.Y)}
		}
		s.recompute()
		s.events.publish(Event{Kind: EventTile})

	case protocol.KindUnitUpdate, protocol.KindUnitAdded:
		u, err := protocol.Item[game.Unit](f, 0)
		if err != nil {
			return err
		}
		s.units[u.ID] = u
		s.unitsChanged()

	case protocol.KindUnitRemoved:
		id, err := protocol.Item[int](f, 0)
		if err != nil {
			return err
		}
		delete(s.units, id)
		s.unitsChanged()

	case protocol.KindCityUpdate, protocol.KindCityAdded:
		c, err := protocol.Item[game.City](f, 0)
		if err != nil {
			return err
		}
		s.cities[c.ID] = c
		s.citiesChanged()

	case protocol.KindCityRemoved:
		id, err := protocol.Item[int](f, 0)
		if err != nil {
			return err
		}
		delete(s.cities, id)
		s.citiesChanged()

	case protocol.KindLobbyKick, protocol.KindLobbyBan:
		reason, err := protocol.Item[string](f, 1)
		if err != nil {
			reason = f.Kind.String()
		}
		s.disconnectLocked(reason)

	case protocol.KindGameOver:
		winner, err := protocol.Item[int](f, 0)
		if err != nil {
			return err
		}
		victory, err := protocol.Item[game.VictoryType](f, 1)
		if err != nil {
			return err
		}
		s.over = &GameOver{WinnerID: winner, Victory: victory}
		s.inTurn = false
		s.log.Info("game over", zap.Int("winner", winner), zap.Stringer("victory", victory))
		s.events.publish(Event{Kind: EventGameOver, Turn: s.turn})

	default:
		return &protocol.ProtocolError{Kind: f.Kind, Phase: "client"}
	}
	return nil
}

func (s *Synchronizer) applyTurnData(f protocol.Frame) error {
	n, err := protocol.Item[int](f, 0)
	if err != nil {
		return err
	}
	limit, err := protocol.Item[time.Duration](f, 1)
	if err != nil {
		return err
	}
	reason, err := protocol.Item[game.TurnEndReason](f, 2)
	if err != nil {
		return err
	}
	player, err := protocol.Item[game.Player](f, 3)
	if err != nil {
		return err
	}
	cities, err := protocol.Item[[]game.City](f, 4)
	if err != nil {
		return err
	}
	units, err := protocol.Item[[]game.Unit](f, 5)
	if err != nil {
		return err
	}

	s.turn, s.timeLimit, s.reason, s.player = n, limit, reason, player
	s.units = make(map[int]game.Unit, len(units))
	for _, u := range units {
		s.units[u.ID] = u
	}
	s.cities = make(map[int]game.City, len(cities))
	for _, c := range cities {
		s.cities[c.ID] = c
	}
	s.recompute()

	s.inTurn = true
	s.ended = false
	s.phase = PhaseBegin
	s.log.Debug("turn data", zap.Int("turn", n), zap.Stringer("reason", reason))
	s.events.publish(Event{Kind: EventTurn, Turn: n, Reason: reason.String()})
	s.advancePhase()
	return nil
}

func (s *Synchronizer) unitsChanged() {
	s.recompute()
	s.events.publish(Event{Kind: EventUnits})
	s.advancePhase()
}

func (s *Synchronizer) citiesChanged() {
	s.recompute()
	s.events.publish(Event{Kind: EventCities})
	s.advancePhase()
}

func (s *Synchronizer) recompute() {
	if s.board == nil {
		return
	}
	s.cache.Recompute(s.player.InstanceID, s.board, s.sortedUnits(), s.sortedCities())
}

func (s *Synchronizer) send(f protocol.Frame) error {
	if s.closed || s.out == nil {
		return ErrNotConnected
	}
	if err := s.out.Send(f); err != nil {
		s.log.Warn("send failed", zap.Stringer("kind", f.Kind), zap.Error(err))
		return err
	}
	return nil
}

func (s *Synchronizer) sortedUnits() []game.Unit {
	out := make([]game.Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Synchronizer) sortedCities() []game.City {
	out := make([]game.City, 0, len(s.cities))
	for _, c := range s.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
