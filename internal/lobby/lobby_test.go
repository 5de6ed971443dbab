package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/rules"
	"github.com/arwic/dominion/internal/session"
	"github.com/arwic/dominion/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubPeer struct {
	id     uint64
	remote string
	mu     sync.Mutex
	sent   []protocol.Frame
	closed bool
}

func newPeer(id uint64) *stubPeer {
	return &stubPeer{id: id, remote: fmt.Sprintf("10.0.0.%d:4000", id)}
}

func (p *stubPeer) ID() uint64         { return p.id }
func (p *stubPeer) RemoteAddr() string { return p.remote }
func (p *stubPeer) Send(f protocol.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, f)
	return nil
}
func (p *stubPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *stubPeer) frames() []protocol.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Frame(nil), p.sent...)
}

func (p *stubPeer) last(t *testing.T) protocol.Frame {
	t.Helper()
	sent := p.frames()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

func (p *stubPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func newCoordinator(t *testing.T, password string) (*Coordinator, *session.Registry) {
	t.Helper()
	r, err := rules.Default()
	require.NoError(t, err)

	var hash []byte
	if password != "" {
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
	}
	reg := session.NewRegistry()
	return New(reg, Options{PasswordHash: hash, Store: store.NewMemory(), Rules: r}), reg
}

func join(t *testing.T, c *Coordinator, p *stubPeer, name string) *session.Session {
	t.Helper()
	s, err := c.Join(context.Background(), p, name, "")
	require.NoError(t, err)
	return s
}

func lobbyState(t *testing.T, f protocol.Frame) game.LobbyState {
	t.Helper()
	require.Equal(t, protocol.KindLobbyStateSync, f.Kind)
	st, err := protocol.Item[game.LobbyState](f, 0)
	require.NoError(t, err)
	return st
}

func TestJoinSendsInitThenState(t *testing.T) {
	c, _ := newCoordinator(t, "pw1")
	alice := newPeer(1)

	s, err := c.Join(context.Background(), alice, "Alice", "pw1")
	require.NoError(t, err)
	assert.True(t, s.IsHost)

	sent := alice.frames()
	require.Len(t, sent, 2)

	require.Equal(t, protocol.KindLobbyInit, sent[0].Kind)
	player, err := protocol.Item[game.Player](sent[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "Alice", player.Name)
	assert.Equal(t, s.InstanceID, player.InstanceID)
	assert.Equal(t, game.NoResearch, player.ResearchID)
	catalog, err := protocol.Item[rules.Catalog](sent[0], 1)
	require.NoError(t, err)
	assert.Positive(t, catalog.Empires.Count())

	st := lobbyState(t, sent[1])
	require.Len(t, st.Players, 1)
	assert.Equal(t, "Alice", st.Players[0].Name)
	assert.True(t, st.Players[0].IsHost)
}

func TestJoinRejections(t *testing.T) {
	cases := []struct {
		name     string
		password string
		setup    func(t *testing.T, c *Coordinator)
		want     game.RejectCode
	}{
		{name: "wrong password", password: "nope", want: game.RejectBadPassword},
		{
			name:     "game started",
			password: "pw1",
			setup: func(t *testing.T, c *Coordinator) {
				host := newPeer(10)
				_, err := c.Join(context.Background(), host, "Host", "pw1")
				require.NoError(t, err)
				require.NoError(t, c.Start(host.id))
			},
			want: game.RejectGameStarted,
		},
		{
			name:     "banned address",
			password: "pw1",
			setup: func(t *testing.T, c *Coordinator) {
				require.NoError(t, c.opts.Store.AddBan(context.Background(), store.Ban{Host: "10.0.0.1"}))
			},
			want: game.RejectBanned,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, reg := newCoordinator(t, "pw1")
			if tc.setup != nil {
				tc.setup(t, c)
			}
			before := reg.Len()
			p := newPeer(1)

			_, err := c.Join(context.Background(), p, "Mallory", tc.password)
			var ae *protocol.AuthError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, tc.want, ae.Code)
			assert.ErrorIs(t, err, protocol.ErrRejected)

			f := p.last(t)
			assert.Equal(t, protocol.KindLobbyKick, f.Kind)
			assert.Equal(t, []any{tc.want, tc.want.String()}, f.Items)
			assert.True(t, p.isClosed())
			assert.Equal(t, before, reg.Len(), "rejected peers never become sessions")
		})
	}
}

func TestBannedAddressRejectedAfterReconnect(t *testing.T) {
	c, reg := newCoordinator(t, "")
	host := newPeer(1)
	bob := newPeer(2)
	join(t, c, host, "Alice")
	bobSession := join(t, c, bob, "Bob")

	require.NoError(t, c.Ban(context.Background(), host.id, bobSession.InstanceID))
	assert.Equal(t, protocol.KindLobbyBan, bob.last(t).Kind)
	assert.True(t, bob.isClosed())
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, lobbyState(t, host.last(t)).Players, 1)

	again := &stubPeer{id: 3, remote: "10.0.0.2:5999"}
	_, err := c.Join(context.Background(), again, "Robert", "different")
	var ae *protocol.AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, game.RejectBanned, ae.Code)
}

func TestKick(t *testing.T) {
	c, reg := newCoordinator(t, "")
	host, bob := newPeer(1), newPeer(2)
	hostSession := join(t, c, host, "Alice")
	bobSession := join(t, c, bob, "Bob")

	assert.ErrorIs(t, c.Kick(bob.id, hostSession.InstanceID), ErrNotHost)
	assert.ErrorIs(t, c.Kick(host.id, hostSession.InstanceID), ErrKickSelf)
	assert.ErrorIs(t, c.Kick(host.id, 99), ErrUnknownPlayer)

	require.NoError(t, c.Kick(host.id, bobSession.InstanceID))
	assert.Equal(t, []any{game.RejectNone, "kicked by host"}, bob.last(t).Items)
	assert.True(t, bob.isClosed())
	assert.Equal(t, 1, reg.Len())

	rejoin := &stubPeer{id: 3, remote: bob.remote}
	_, err := c.Join(context.Background(), rejoin, "Bob", "")
	assert.NoError(t, err, "kick is not a ban")
}

func TestNamesAreNormalisedAndUnique(t *testing.T) {
	c, _ := newCoordinator(t, "")

	cases := []struct {
		raw  string
		want string
	}{
		{raw: "Alice", want: "Alice"},
		{raw: "alice", want: "alice (2)"},
		{raw: "Ａｌｉｃｅ", want: "Alice (3)"},
		{raw: "  \tBob\x00  ", want: "Bob"},
		{raw: "", want: "Player 5"},
		{raw: "abcdefghijklmnopqrstuvwxyz", want: "abcdefghijklmnopqrstuvwx"},
	}
	for i, tc := range cases {
		s := join(t, c, newPeer(uint64(i+1)), tc.raw)
		assert.Equal(t, tc.want, s.Name, "raw %q", tc.raw)
	}
}

func TestSelectEmpire(t *testing.T) {
	c, _ := newCoordinator(t, "")
	alice := newPeer(1)
	join(t, c, alice, "Alice")

	require.NoError(t, c.SelectEmpire(alice.id, 2))
	st := lobbyState(t, alice.last(t))
	assert.Equal(t, 2, st.Players[0].EmpireID)

	assert.ErrorIs(t, c.SelectEmpire(alice.id, 99), rules.ErrFactoryOutOfSync)
	assert.ErrorIs(t, c.SelectEmpire(42, 1), ErrUnknownPlayer)
}

func TestUpdateSettings(t *testing.T) {
	c, _ := newCoordinator(t, "")
	host, bob := newPeer(1), newPeer(2)
	join(t, c, host, "Alice")
	join(t, c, bob, "Bob")

	settings := game.LobbySettings{WorldSize: game.WorldSizeDuel, WorldType: game.WorldTypePangaea, VictoryTypes: []bool{true}}
	assert.ErrorIs(t, c.UpdateSettings(bob.id, settings), ErrNotHost)

	require.NoError(t, c.UpdateSettings(host.id, settings))
	got := lobbyState(t, bob.last(t))
	assert.Equal(t, game.WorldSizeDuel, got.WorldSize)
	assert.Len(t, got.VictoryTypes, int(game.VictoryTypeCount))
	assert.True(t, got.VictoryEnabled(game.VictoryDomination))
	assert.False(t, got.VictoryEnabled(game.VictoryScience))
	assert.Len(t, got.OtherOptions, int(game.GameOptionCount))

	assert.ErrorIs(t, c.UpdateSettings(host.id, game.LobbySettings{WorldSize: 42}), ErrInvalidSettings)
}

func TestLeavePromotesHost(t *testing.T) {
	c, reg := newCoordinator(t, "")
	host, bob := newPeer(1), newPeer(2)
	join(t, c, host, "Alice")
	join(t, c, bob, "Bob")

	removed, ok := c.Leave(host.id)
	require.True(t, ok)
	assert.Equal(t, "Alice", removed.Name)

	st := lobbyState(t, bob.last(t))
	require.Len(t, st.Players, 1)
	assert.True(t, st.Players[0].IsHost)

	newHost, _ := reg.Host()
	assert.Equal(t, "Bob", newHost.Name)
	require.NoError(t, c.Start(bob.id), "the promoted host can start")

	_, ok = c.Leave(host.id)
	assert.False(t, ok)
}

func TestStartIsOneWay(t *testing.T) {
	c, _ := newCoordinator(t, "")
	host, bob := newPeer(1), newPeer(2)
	join(t, c, host, "Alice")
	join(t, c, bob, "Bob")

	assert.ErrorIs(t, c.Start(bob.id), ErrNotHost)
	require.NoError(t, c.Start(host.id))
	assert.Equal(t, PhaseGame, c.Phase())

	assert.ErrorIs(t, c.Start(host.id), ErrGameStarted)
	assert.ErrorIs(t, c.SelectEmpire(bob.id, 1), ErrGameStarted)
	assert.ErrorIs(t, c.Kick(host.id, 2), ErrGameStarted)
}
