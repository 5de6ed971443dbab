package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/rules"
	"github.com/arwic/dominion/internal/session"
	"github.com/arwic/dominion/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrNotHost = errors.New("only the host can do that")
var ErrGameStarted = errors.New("game already started")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrKickSelf = errors.New("host cannot kick themselves")
var ErrInvalidSettings = errors.New("invalid lobby settings")

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseGame
)

func (p Phase) String() string {
	if p == PhaseGame {
		return "game"
	}
	return "lobby"
}

type Options struct {
	// PasswordHash is a bcrypt hash; nil leaves the match open.
	PasswordHash []byte
	Store        store.Store
	Rules        *rules.Catalog
	// KickGrace is how long a rejected or removed peer keeps its socket so
	// the reason frame can drain.
	KickGrace time.Duration
	Logger    *zap.Logger
}

// HashPassword prepares a match password for Options. An empty password
// yields a nil hash.
func HashPassword(pw string) ([]byte, error) {
	if pw == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
}

// Coordinator owns the pre-game registry and match settings. It is not safe
// for concurrent use; the match goroutine owns it.
type Coordinator struct {
	sessions *session.Registry
	opts     Options
	log      *zap.Logger
	phase    Phase
	settings game.LobbySettings
}

func New(sessions *session.Registry, opts Options) *Coordinator {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		sessions: sessions,
		opts:     opts,
		log:      log.Named("lobby"),
		settings: game.DefaultLobbySettings(),
	}
}

func (c *Coordinator) Phase() Phase { return c.phase }

func (c *Coordinator) Settings() game.LobbySettings { return cloneSettings(c.settings) }

// State is rebuilt from the live sessions on every call.
func (c *Coordinator) State() game.LobbyState {
	snap := c.sessions.Snapshot()
	players := make([]game.BasicPlayer, 0, len(snap))
	for _, s := range snap {
		players = append(players, game.BasicPlayer{InstanceID: s.InstanceID, Name: s.Name, EmpireID: s.EmpireID, IsHost: s.IsHost})
	}
	return game.LobbyState{Players: players, LobbySettings: cloneSettings(c.settings)}
}

func (c *Coordinator) Broadcast() error {
	return c.sessions.Broadcast(protocol.NewFrame(protocol.KindLobbyStateSync, c.State()))
}

// Join admits peer as a new session or refuses it with an AuthError after
// sending the refusal reason.
func (c *Coordinator) Join(ctx context.Context, peer session.Peer, name, password string) (*session.Session, error) {
	log := c.log.With(zap.Uint64("conn_id", peer.ID()), zap.String("remote", peer.RemoteAddr()))

	if _, ok := c.sessions.ByPeer(peer.ID()); ok {
		return nil, fmt.Errorf("peer %d already joined: %w", peer.ID(), protocol.ErrUnexpectedKind)
	}
	if c.phase != PhaseLobby {
		return nil, c.reject(peer, game.RejectGameStarted)
	}
	banned, err := c.opts.Store.IsBanned(ctx, session.HostOf(peer.RemoteAddr()))
	if err != nil {
		log.Error("ban lookup failed", zap.Error(err))
	}
	if banned {
		return nil, c.reject(peer, game.RejectBanned)
	}
	if !c.passwordMatches(password) {
		return nil, c.reject(peer, game.RejectBadPassword)
	}
	s := c.sessions.Create(peer, "")
	unique := c.uniqueName(name, s.InstanceID)
	c.sessions.Update(peer.ID(), func(s *session.Session) { s.Name = unique })

	player := game.Player{InstanceID: s.InstanceID, Name: s.Name, EmpireID: s.EmpireID, IsHost: s.IsHost, ResearchID: game.NoResearch}
	var catalog rules.Catalog
	if c.opts.Rules != nil {
		catalog = *c.opts.Rules
	}
	if err := peer.Send(protocol.NewFrame(protocol.KindLobbyInit, player, catalog)); err != nil {
		log.Warn("lobby init not delivered", zap.Error(err))
	}
	log.Info("player joined", zap.Int("session", s.InstanceID), zap.String("name", s.Name), zap.Bool("host", s.IsHost))
	return s, c.Broadcast()
}

func (c *Coordinator) passwordMatches(pw string) bool {
	if len(c.opts.PasswordHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(c.opts.PasswordHash, []byte(pw)) == nil
}

func (c *Coordinator) reject(peer session.Peer, code game.RejectCode) error {
	c.log.Info("join rejected", zap.Uint64("conn_id", peer.ID()), zap.String("remote", peer.RemoteAddr()), zap.Stringer("reason", code))
	_ = peer.Send(protocol.NewFrame(protocol.KindLobbyKick, code, code.String()))
	c.closeLater(peer)
	return &protocol.AuthError{Code: code}
}

func (c *Coordinator) closeLater(peer session.Peer) {
	if c.opts.KickGrace <= 0 {
		_ = peer.Close()
		return
	}
	time.AfterFunc(c.opts.KickGrace, func() { _ = peer.Close() })
}

// SelectEmpire records a session's empire choice.
func (c *Coordinator) SelectEmpire(peerID uint64, empireID int) error {
	if c.phase != PhaseLobby {
		return ErrGameStarted
	}
	if c.opts.Rules != nil {
		if _, err := c.opts.Rules.Empires.GetByID(empireID); err != nil {
			return err
		}
	}
	if _, ok := c.sessions.Update(peerID, func(s *session.Session) { s.EmpireID = empireID }); !ok {
		return ErrUnknownPlayer
	}
	return c.Broadcast()
}

// UpdateSettings replaces the match settings. Host only.
func (c *Coordinator) UpdateSettings(peerID uint64, settings game.LobbySettings) error {
	if err := c.requireHost(peerID); err != nil {
		return err
	}
	if settings.WorldSize < game.WorldSizeDuel || settings.WorldSize > game.WorldSizeLarge ||
		settings.WorldType < game.WorldTypeContinents || settings.WorldType > game.WorldTypeArchipelago ||
		settings.GameSpeed < game.GameSpeedQuick || settings.GameSpeed > game.GameSpeedEpic {
		return ErrInvalidSettings
	}
	settings.VictoryTypes = resize(settings.VictoryTypes, int(game.VictoryTypeCount))
	settings.OtherOptions = resize(settings.OtherOptions, int(game.GameOptionCount))
	c.settings = settings
	return c.Broadcast()
}

// Kick removes a session at the host's request.
func (c *Coordinator) Kick(hostPeer uint64, target int) error {
	return c.remove(hostPeer, target, protocol.KindLobbyKick, game.RejectNone, "kicked by host")
}

// Ban removes a session and refuses its address from now on.
func (c *Coordinator) Ban(ctx context.Context, hostPeer uint64, target int) error {
	if err := c.requireHost(hostPeer); err != nil {
		return err
	}
	s, ok := c.sessions.ByInstance(target)
	if !ok {
		return ErrUnknownPlayer
	}
	if s.Peer.ID() == hostPeer {
		return ErrKickSelf
	}
	host, _ := c.sessions.ByPeer(hostPeer)
	if err := c.opts.Store.AddBan(ctx, store.Ban{Host: s.Host(), Name: s.Name, BannedBy: host.Name}); err != nil {
		return fmt.Errorf("failed to store ban: %w", err)
	}
	return c.remove(hostPeer, target, protocol.KindLobbyBan, game.RejectBanned, "banned by host")
}

func (c *Coordinator) remove(hostPeer uint64, target int, kind protocol.Kind, code game.RejectCode, reason string) error {
	if err := c.requireHost(hostPeer); err != nil {
		return err
	}
	s, ok := c.sessions.ByInstance(target)
	if !ok {
		return ErrUnknownPlayer
	}
	if s.Peer.ID() == hostPeer {
		return ErrKickSelf
	}

	c.sessions.Remove(s.Peer.ID())
	_ = s.Peer.Send(protocol.NewFrame(kind, code, reason))
	c.closeLater(s.Peer)
	c.log.Info("player removed", zap.Int("session", s.InstanceID), zap.String("reason", reason))
	return c.Broadcast()
}

// Start moves the match into the game phase. It can happen once.
// CanStart reports whether peerID may start the match now.
func (c *Coordinator) CanStart(peerID uint64) error {
	return c.requireHost(peerID)
}

func (c *Coordinator) Start(peerID uint64) error {
	if err := c.requireHost(peerID); err != nil {
		return err
	}
	c.phase = PhaseGame
	c.log.Info("game starting", zap.Int("players", c.sessions.Len()))
	return nil
}

// Leave drops a disconnected peer. In the lobby the remaining sessions get a
// fresh state.
func (c *Coordinator) Leave(peerID uint64) (*session.Session, bool) {
	removed, newHost, ok := c.sessions.Remove(peerID)
	if !ok {
		return nil, false
	}
	if newHost != nil {
		c.log.Info("host promoted", zap.Int("session", newHost.InstanceID))
	}
	if c.phase == PhaseLobby {
		if err := c.Broadcast(); err != nil {
			c.log.Warn("lobby broadcast incomplete", zap.Error(err))
		}
	}
	return removed, true
}

func (c *Coordinator) requireHost(peerID uint64) error {
	if c.phase != PhaseLobby {
		return ErrGameStarted
	}
	s, ok := c.sessions.ByPeer(peerID)
	if !ok {
		return ErrUnknownPlayer
	}
	if !s.IsHost {
		return ErrNotHost
	}
	return nil
}

func resize(b []bool, n int) []bool {
	out := make([]bool, n)
	copy(out, b)
	return out
}

func cloneSettings(s game.LobbySettings) game.LobbySettings {
	s.VictoryTypes = append([]bool(nil), s.VictoryTypes...)
	s.OtherOptions = append([]bool(nil), s.OtherOptions...)
	return s
}
