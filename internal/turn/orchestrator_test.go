package turn

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPeer struct {
	id   uint64
	mu   sync.Mutex
	sent []protocol.Frame
}

func (p *stubPeer) ID() uint64         { return p.id }
func (p *stubPeer) RemoteAddr() string { return fmt.Sprintf("10.0.0.%d:4000", p.id) }
func (p *stubPeer) Close() error       { return nil }
func (p *stubPeer) Send(f protocol.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, f)
	return nil
}

func (p *stubPeer) last(t *testing.T) protocol.Frame {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.sent)
	return p.sent[len(p.sent)-1]
}

func (p *stubPeer) kinds() []protocol.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Kind, 0, len(p.sent))
	for _, f := range p.sent {
		out = append(out, f.Kind)
	}
	return out
}

type fakeSim struct {
	advanced int
	changed  []game.Tile
	holdings map[int]bool
}

func (s *fakeSim) AdvanceTurn() []game.Tile {
	s.advanced++
	return s.changed
}

func (s *fakeSim) Snapshot(playerID int) (game.Player, []game.City, []game.Unit) {
	return game.Player{InstanceID: playerID, ResearchID: game.NoResearch}, []game.City{}, []game.Unit{}
}

func (s *fakeSim) HasHoldings(playerID int) bool {
	if s.holdings == nil {
		return true
	}
	return s.holdings[playerID]
}

func setup(t *testing.T, n int, opts Options) (*Orchestrator, *session.Registry, []*stubPeer, *fakeSim) {
	t.Helper()
	reg := session.NewRegistry()
	peers := make([]*stubPeer, n)
	for i := range peers {
		peers[i] = &stubPeer{id: uint64(i + 1)}
		reg.Create(peers[i], fmt.Sprintf("p%d", i+1))
	}
	if opts.Settings.VictoryTypes == nil {
		opts.Settings = game.DefaultLobbySettings()
	}
	sim := &fakeSim{}
	o := New(reg, sim, opts)
	t.Cleanup(o.Stop)
	return o, reg, peers, sim
}

func assertTurnData(t *testing.T, f protocol.Frame, turn int, reason game.TurnEndReason) {
	t.Helper()
	require.Equal(t, protocol.KindTurnData, f.Kind)
	require.Len(t, f.Items, 6)
	assert.Equal(t, turn, f.Items[0])
	assert.Equal(t, reason, f.Items[2])
}

func TestTwoSessionsEndingTheirTurnAdvances(t *testing.T) {
	o, reg, peers, sim := setup(t, 2, Options{})
	require.NoError(t, o.Begin())
	for _, p := range peers {
		assertTurnData(t, p.last(t), 0, game.ReasonGameStart)
	}

	ended, err := o.SetEnded(1, true)
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Equal(t, 0, o.Turn())

	ended, err = o.SetEnded(2, true)
	require.NoError(t, err)
	assert.True(t, ended)

	assert.Equal(t, 1, o.Turn())
	assert.Equal(t, 1, sim.advanced)
	for _, p := range peers {
		f := p.last(t)
		assertTurnData(t, f, 1, game.ReasonPlayersEnded)
		player, ok := f.Items[3].(game.Player)
		require.True(t, ok)
		s, _ := reg.ByPeer(p.id)
		assert.Equal(t, s.InstanceID, player.InstanceID, "each session gets its own player")
	}
	for _, s := range reg.Snapshot() {
		assert.False(t, s.EndedTurn)
	}
}

func TestRetractingEndTurnHoldsTheTurn(t *testing.T) {
	o, _, _, sim := setup(t, 2, Options{})
	require.NoError(t, o.Begin())

	_, err := o.SetEnded(1, true)
	require.NoError(t, err)
	_, err = o.SetEnded(1, false)
	require.NoError(t, err)
	ended, err := o.SetEnded(2, true)
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Equal(t, 0, sim.advanced)

	_, err = o.SetEnded(99, true)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestTimeoutEndsTurnOnce(t *testing.T) {
	fired := make(chan int, 4)
	o, _, peers, _ := setup(t, 2, Options{
		TimeLimit: 20 * time.Millisecond,
		OnTimeout: func(turn int) { fired <- turn },
	})
	require.NoError(t, o.Begin())

	var turn int
	select {
	case turn = <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	assert.Equal(t, 0, turn)

	ok, err := o.Timeout(turn)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, o.Turn())
	for _, p := range peers {
		f := p.last(t)
		assertTurnData(t, f, 1, game.ReasonTimeout)
		assert.Equal(t, 20*time.Millisecond, f.Items[1])
	}

	ok, err = o.Timeout(turn)
	require.NoError(t, err)
	assert.False(t, ok, "a second fire for the same turn is stale")
	assert.Equal(t, 1, o.Turn())
}

func TestStaleTimeoutAfterPlayersEnded(t *testing.T) {
	o, _, _, sim := setup(t, 1, Options{TimeLimit: time.Hour, OnTimeout: func(int) {}})
	require.NoError(t, o.Begin())

	ended, err := o.SetEnded(1, true)
	require.NoError(t, err)
	require.True(t, ended)

	ok, err := o.Timeout(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, sim.advanced)
}

func TestTileChangesPrecedeTurnData(t *testing.T) {
	o, _, peers, sim := setup(t, 2, Options{})
	sim.changed = []game.Tile{{X: 1, Y: 2, Terrain: game.TerrainPlains, CityID: 3}}
	require.NoError(t, o.Begin())
	require.NoError(t, o.EndTurn(game.ReasonHostForced))

	for _, p := range peers {
		assert.Equal(t, []protocol.Kind{protocol.KindTurnData, protocol.KindTileUpdate, protocol.KindTurnData}, p.kinds())
		assertTurnData(t, p.last(t), 1, game.ReasonHostForced)
	}
}

func TestDominationEndsMatch(t *testing.T) {
	var results []Result
	o, _, peers, sim := setup(t, 2, Options{OnGameOver: func(r Result) { results = append(results, r) }})
	require.NoError(t, o.Begin())

	sim.holdings = map[int]bool{1: true, 2: false}
	require.NoError(t, o.EndTurn(game.ReasonHostForced))

	res, over := o.Result()
	require.True(t, over)
	assert.Equal(t, 1, res.WinnerID)
	assert.Equal(t, "p1", res.WinnerName)
	assert.Equal(t, game.VictoryDomination, res.Victory)
	assert.Equal(t, []Result{res}, results)

	for _, p := range peers {
		f := p.last(t)
		assert.Equal(t, protocol.KindGameOver, f.Kind)
		assert.Equal(t, []any{1, game.VictoryDomination}, f.Items)
	}

	assert.ErrorIs(t, o.EndTurn(game.ReasonHostForced), ErrMatchOver)
	_, err := o.SetEnded(1, true)
	assert.ErrorIs(t, err, ErrMatchOver)
}

func TestDominationRespectsSettings(t *testing.T) {
	settings := game.DefaultLobbySettings()
	settings.VictoryTypes[game.VictoryDomination] = false
	o, _, _, sim := setup(t, 2, Options{Settings: settings})
	require.NoError(t, o.Begin())

	sim.holdings = map[int]bool{1: true}
	require.NoError(t, o.EndTurn(game.ReasonHostForced))
	assert.False(t, o.Over())
}

func TestSoloMatchNeverDominates(t *testing.T) {
	o, _, _, sim := setup(t, 1, Options{})
	require.NoError(t, o.Begin())
	sim.holdings = map[int]bool{1: true}
	require.NoError(t, o.EndTurn(game.ReasonHostForced))
	assert.False(t, o.Over())
}

func TestSessionLeftReevaluatesTurn(t *testing.T) {
	o, reg, _, _ := setup(t, 3, Options{Settings: game.LobbySettings{VictoryTypes: []bool{}}})
	require.NoError(t, o.Begin())

	_, err := o.SetEnded(1, true)
	require.NoError(t, err)
	_, err = o.SetEnded(2, true)
	require.NoError(t, err)
	assert.Equal(t, 0, o.Turn())

	_, _, ok := reg.Remove(3)
	require.True(t, ok)
	require.NoError(t, o.SessionLeft())
	assert.Equal(t, 1, o.Turn())
}

func TestSessionLeftLeavesLastPlayerStanding(t *testing.T) {
	o, reg, _, _ := setup(t, 2, Options{})
	require.NoError(t, o.Begin())

	reg.Remove(2)
	require.NoError(t, o.SessionLeft())
	res, over := o.Result()
	require.True(t, over)
	assert.Equal(t, 1, res.WinnerID)
}

func TestTimerStopAndRearm(t *testing.T) {
	var tm Timer
	fired := make(chan string, 2)

	tm.Arm(10*time.Millisecond, func() { fired <- "first" })
	tm.Stop()
	assert.False(t, tm.Armed())

	tm.Arm(10*time.Millisecond, func() { fired <- "second" })
	tm.Arm(10*time.Millisecond, func() { fired <- "third" })
	assert.True(t, tm.Armed())

	select {
	case got := <-fired:
		assert.Equal(t, "third", got)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	select {
	case got := <-fired:
		t.Fatalf("unexpected fire %q", got)
	case <-time.After(50 * time.Millisecond):
	}

	tm.Arm(0, func() { fired <- "never" })
	assert.False(t, tm.Armed())
}
