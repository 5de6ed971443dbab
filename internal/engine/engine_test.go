package engine

import (
	"testing"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	unitSettler = 0
	unitWarrior = 1
)

func newTestWorld(t *testing.T, width, height int) *World {
	t.Helper()
	r, err := rules.Default()
	require.NoError(t, err)

	board := game.NewBoard(width, height)
	for y := range board.Tiles {
		for x := range board.Tiles[y] {
			board.Tiles[y][x].Terrain = game.TerrainGrassland
		}
	}
	w := NewWorld(r, board, nil)
	w.AddPlayer(game.BasicPlayer{InstanceID: 1, Name: "Alice", IsHost: true})
	w.AddPlayer(game.BasicPlayer{InstanceID: 2, Name: "Bob", EmpireID: 1})
	return w
}

func containsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func spawn(t *testing.T, w *World, player, def int, at game.Point) game.Unit {
	t.Helper()
	u, err := w.SpawnUnit(player, def, at)
	require.NoError(t, err)
	return u
}

func TestApplyUnitCommandRejects(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	w.Board.Tiles[0][9].Terrain = game.TerrainOcean
	warrior := spawn(t, w, 1, unitWarrior, game.Point{X: 2, Y: 2})

	cases := []struct {
		name    string
		player  int
		cmd     game.UnitCommand
		wantErr error
	}{
		{name: "unknown unit", player: 1, cmd: game.UnitCommand{UnitID: 99, Kind: game.UnitSleep}, wantErr: ErrUnknownUnit},
		{name: "other player's unit", player: 2, cmd: game.UnitCommand{UnitID: warrior.ID, Kind: game.UnitSleep}, wantErr: ErrNotOwner},
		{name: "warrior cannot settle", player: 1, cmd: game.UnitCommand{UnitID: warrior.ID, Kind: game.UnitSettle}, wantErr: ErrCannotSettle},
		{name: "move into ocean", player: 1, cmd: game.UnitCommand{UnitID: warrior.ID, Kind: game.UnitMove, Target: game.Point{X: 9, Y: 0}}, wantErr: ErrNoPath},
		{name: "move off board", player: 1, cmd: game.UnitCommand{UnitID: warrior.ID, Kind: game.UnitMove, Target: game.Point{X: -1, Y: 0}}, wantErr: ErrNoPath},
		{name: "unknown order", player: 1, cmd: game.UnitCommand{UnitID: warrior.ID, Kind: game.UnitCommandKind(99)}, wantErr: ErrUnsupportedCommand},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, err := w.ApplyUnitCommand(tc.player, tc.cmd)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, events)
		})
	}

	u, ok := w.Unit(warrior.ID)
	require.True(t, ok)
	assert.Equal(t, warrior, u, "rejected commands leave the unit untouched")
}

func TestMoveSpendsMovesAndContinuesNextTurn(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	warrior := spawn(t, w, 1, unitWarrior, game.Point{X: 0, Y: 0})
	target := game.Point{X: 5, Y: 0}

	events, err := w.ApplyUnitCommand(1, game.UnitCommand{UnitID: warrior.ID, Kind: game.UnitMove, Target: target})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EvtUnitUpdated, events[0].Type)

	u := events[0].Unit
	assert.Equal(t, 0, u.MovesLeft)
	assert.Len(t, u.Path, 3)
	assert.Equal(t, 3, game.Distance(u.Pos(), target))
	assert.True(t, u.HasOrders())

	w.AdvanceTurn()
	u, _ = w.Unit(warrior.ID)
	assert.Len(t, u.Path, 1)
	assert.Equal(t, 1, game.Distance(u.Pos(), target))

	w.AdvanceTurn()
	u, _ = w.Unit(warrior.ID)
	assert.Equal(t, target, u.Pos())
	assert.Nil(t, u.Path)
	assert.Equal(t, 1, u.MovesLeft)
}

func TestSleepWakeSkipDisband(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	u := spawn(t, w, 1, unitWarrior, game.Point{X: 3, Y: 3})

	events, err := w.ApplyUnitCommand(1, game.UnitCommand{UnitID: u.ID, Kind: game.UnitSleep})
	require.NoError(t, err)
	assert.True(t, events[0].Unit.Sleeping)

	events, err = w.ApplyUnitCommand(1, game.UnitCommand{UnitID: u.ID, Kind: game.UnitWake})
	require.NoError(t, err)
	assert.False(t, events[0].Unit.Sleeping)

	events, err = w.ApplyUnitCommand(1, game.UnitCommand{UnitID: u.ID, Kind: game.UnitSkip})
	require.NoError(t, err)
	assert.True(t, events[0].Unit.Skipped)

	w.AdvanceTurn()
	got, _ := w.Unit(u.ID)
	assert.False(t, got.Skipped, "skip lasts one turn")

	events, err = w.ApplyUnitCommand(1, game.UnitCommand{UnitID: u.ID, Kind: game.UnitDisband})
	require.NoError(t, err)
	assert.Equal(t, []Event{{Type: EvtUnitRemoved, UnitID: u.ID}}, events)
	assert.False(t, w.HasHoldings(1))
}

func TestSettleFoundsCity(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	settler := spawn(t, w, 1, unitSettler, game.Point{X: 5, Y: 4})
	other := spawn(t, w, 1, unitSettler, game.Point{X: 6, Y: 4})

	events, err := w.ApplyUnitCommand(1, game.UnitCommand{UnitID: settler.ID, Kind: game.UnitSettle})
	require.NoError(t, err)
	assert.True(t, containsEvent(events, EvtUnitRemoved))
	assert.True(t, containsEvent(events, EvtCityAdded))
	assert.True(t, containsEvent(events, EvtTileUpdated))

	cities := w.Cities()
	require.Len(t, cities, 1)
	city := cities[0]
	assert.Equal(t, game.Point{X: 5, Y: 4}, city.Center())
	assert.Equal(t, "Rome 1", city.Name)
	assert.Len(t, city.Tiles, 7)
	for _, p := range city.Tiles {
		assert.Equal(t, city.ID, w.Board.Tile(p).CityID)
	}

	_, err = w.ApplyUnitCommand(1, game.UnitCommand{UnitID: other.ID, Kind: game.UnitSettle})
	assert.ErrorIs(t, err, ErrCannotSettle)
	assert.True(t, w.HasHoldings(1))
}

func foundCity(t *testing.T, w *World, player int, at game.Point) game.City {
	t.Helper()
	c, _, err := w.FoundCity(player, "Test", at)
	require.NoError(t, err)
	return c
}

func TestCityQueueProducesUnit(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	city := foundCity(t, w, 1, game.Point{X: 4, Y: 4})

	_, err := w.ApplyCityCommand(1, game.CityCommand{CityID: city.ID, Kind: game.CityEnqueue, ProductionID: 3})
	assert.ErrorIs(t, err, ErrLocked, "archers need archery")

	_, err = w.ApplyCityCommand(2, game.CityCommand{CityID: city.ID, Kind: game.CityEnqueue, ProductionID: 1})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = w.ApplyCityCommand(1, game.CityCommand{CityID: city.ID, Kind: game.CityEnqueue, ProductionID: 99})
	assert.ErrorIs(t, err, rules.ErrFactoryOutOfSync)

	events, err := w.ApplyCityCommand(1, game.CityCommand{CityID: city.ID, Kind: game.CityEnqueue, ProductionID: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, events[0].City.Queue)

	for turn := 0; turn < 100 && len(w.Units()) == 0; turn++ {
		w.AdvanceTurn()
	}
	units := w.Units()
	require.Len(t, units, 1)
	assert.Equal(t, unitWarrior, units[0].DefinitionID)
	assert.Equal(t, city.Center(), units[0].Pos())

	got, _ := w.City(city.ID)
	assert.Empty(t, got.Queue)
	assert.Greater(t, got.Population, 1)
	assert.Greater(t, len(got.Tiles), 7, "growth claims border tiles")
}

func TestAdvanceTurnLogsRulesOutOfSync(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	core, logs := observer.New(zapcore.ErrorLevel)
	w.log = zap.New(core)
	city := foundCity(t, w, 1, game.Point{X: 4, Y: 4})
	w.cities[city.ID].Buildings = []int{99}
	w.cities[city.ID].Queue = []int{99, 1}

	w.AdvanceTurn()

	got, _ := w.City(city.ID)
	assert.Equal(t, []int{1}, got.Queue, "unknown queue head is dropped")
	entries := logs.FilterMessage("rules out of sync").All()
	require.NotEmpty(t, entries)
	var during []string
	for _, e := range entries {
		during = append(during, e.ContextMap()["during"].(string))
	}
	assert.Contains(t, during, "city building")
	assert.Contains(t, during, "production queue")
}

func TestClearQueue(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	city := foundCity(t, w, 1, game.Point{X: 4, Y: 4})
	_, err := w.ApplyCityCommand(1, game.CityCommand{CityID: city.ID, Kind: game.CityEnqueue, ProductionID: 1})
	require.NoError(t, err)

	events, err := w.ApplyCityCommand(1, game.CityCommand{CityID: city.ID, Kind: game.CityClearQueue})
	require.NoError(t, err)
	assert.Empty(t, events[0].City.Queue)

	_, err = w.ApplyCityCommand(1, game.CityCommand{CityID: 42, Kind: game.CityClearQueue})
	assert.ErrorIs(t, err, ErrUnknownCity)
}

func TestResearch(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	foundCity(t, w, 1, game.Point{X: 4, Y: 4})

	_, err := w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerSelectResearch, ID: 1})
	assert.ErrorIs(t, err, ErrLocked, "writing needs pottery")

	events, err := w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerSelectResearch, ID: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, events[0].Player.ResearchID)

	for turn := 0; turn < 100; turn++ {
		w.AdvanceTurn()
		if p, _ := w.Player(1); p.HasTechnology(0) {
			break
		}
	}
	p, _ := w.Player(1)
	require.True(t, p.HasTechnology(0))
	assert.Equal(t, game.NoResearch, p.ResearchID)

	_, err = w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerSelectResearch, ID: 0})
	assert.ErrorIs(t, err, ErrAlreadyKnown)

	_, err = w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerSelectResearch, ID: 1})
	assert.NoError(t, err)
}

func TestAdoptPolicy(t *testing.T) {
	w := newTestWorld(t, 10, 8)
	foundCity(t, w, 1, game.Point{X: 4, Y: 4})

	_, err := w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerAdoptPolicy, ID: 0})
	assert.ErrorIs(t, err, ErrNoPolicyPoints)

	for turn := 0; turn < 100; turn++ {
		w.AdvanceTurn()
		if p, _ := w.Player(1); p.PolicyPoints > 0 {
			break
		}
	}

	events, err := w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerAdoptPolicy, ID: 0})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, events[0].Player.Policies)

	_, err = w.ApplyPlayerCommand(1, game.PlayerCommand{Kind: game.PlayerAdoptPolicy, ID: 0})
	assert.ErrorIs(t, err, ErrAlreadyKnown)

	_, err = w.ApplyPlayerCommand(7, game.PlayerCommand{Kind: game.PlayerAdoptPolicy, ID: 0})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestAdvanceTurnIsDeterministic(t *testing.T) {
	build := func() *World {
		w := newTestWorld(t, 12, 10)
		c := foundCity(t, w, 1, game.Point{X: 3, Y: 3})
		foundCity(t, w, 2, game.Point{X: 8, Y: 6})
		spawn(t, w, 1, unitWarrior, game.Point{X: 0, Y: 0})
		_, err := w.ApplyCityCommand(1, game.CityCommand{CityID: c.ID, Kind: game.CityEnqueue, ProductionID: 2})
		require.NoError(t, err)
		return w
	}
	a, b := build(), build()
	for i := 0; i < 30; i++ {
		assert.Equal(t, a.AdvanceTurn(), b.AdvanceTurn())
	}
	assert.Equal(t, a.Units(), b.Units())
	assert.Equal(t, a.Cities(), b.Cities())
	assert.Equal(t, a.Board, b.Board)
}

func TestFindPath(t *testing.T) {
	board := game.NewBoard(7, 7)
	for y := range board.Tiles {
		for x := range board.Tiles[y] {
			board.Tiles[y][x].Terrain = game.TerrainGrassland
		}
	}
	for y := 0; y < 6; y++ {
		board.Tiles[y][3].Terrain = game.TerrainMountain
	}

	from, to := game.Point{X: 1, Y: 3}, game.Point{X: 5, Y: 3}
	path, ok := FindPath(board, from, to)
	require.True(t, ok)
	require.NotEmpty(t, path)
	assert.Equal(t, to, path[len(path)-1])

	prev := from
	for _, p := range path {
		assert.Equal(t, 1, game.Distance(prev, p), "step %v -> %v", prev, p)
		assert.True(t, board.Tile(p).Terrain.Passable())
		prev = p
	}

	path, ok = FindPath(board, from, from)
	assert.True(t, ok)
	assert.Empty(t, path)

	board.Tiles[6][3].Terrain = game.TerrainOcean
	_, ok = FindPath(board, from, to)
	assert.False(t, ok, "wall closed")
}

func TestFindPathPrefersCheapTerrain(t *testing.T) {
	board := game.NewBoard(5, 3)
	for y := range board.Tiles {
		for x := range board.Tiles[y] {
			board.Tiles[y][x].Terrain = game.TerrainHills
		}
	}
	for x := 0; x < 5; x++ {
		board.Tiles[0][x].Terrain = game.TerrainGrassland
	}

	path, ok := FindPath(board, game.Point{X: 0, Y: 0}, game.Point{X: 4, Y: 0})
	require.True(t, ok)
	for _, p := range path {
		assert.Equal(t, 0, p.Y)
	}
}

func TestGenerateBoard(t *testing.T) {
	for _, wt := range []game.WorldType{game.WorldTypeContinents, game.WorldTypePangaea, game.WorldTypeArchipelago} {
		a := GenerateBoard(wt, game.WorldSizeDuel, 42)
		b := GenerateBoard(wt, game.WorldSizeDuel, 42)
		assert.Equal(t, a, b, "same seed, same board")

		width, height := game.WorldSizeDuel.Dimensions()
		assert.Equal(t, width, a.Width)
		assert.Equal(t, height, a.Height)

		land := 0
		for y := range a.Tiles {
			for x := range a.Tiles[y] {
				if a.Tiles[y][x].Terrain.Passable() {
					land++
				}
			}
			assert.Equal(t, game.TerrainOcean, a.Tiles[y][0].Terrain, "edges are ocean")
		}
		assert.Positive(t, land)
	}
}

func TestGenerateBoardFollowsWorldType(t *testing.T) {
	width, height := game.WorldSizeDuel.Dimensions()
	cases := []struct {
		worldType game.WorldType
		centers   []game.Point
	}{
		{game.WorldTypeContinents, []game.Point{{X: width / 4, Y: height / 2}, {X: width * 3 / 4, Y: height / 2}}},
		{game.WorldTypePangaea, []game.Point{{X: width / 2, Y: height / 2}}},
		{game.WorldTypeArchipelago, []game.Point{{X: width / 2, Y: height / 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.worldType.String(), func(t *testing.T) {
			b := GenerateBoard(tc.worldType, game.WorldSizeDuel, 7)
			for _, c := range tc.centers {
				assert.NotEqual(t, game.TerrainOcean, b.Tile(c).Terrain, "landmass center %v", c)
			}
			assert.NotEqual(t, b, GenerateBoard(tc.worldType, game.WorldSizeDuel, 8), "seed changes the board")
		})
	}
}

func TestSpawnStartSeparatesPlayers(t *testing.T) {
	w := newTestWorld(t, 20, 12)

	units, err := w.SpawnStart([]int{1, 2})
	require.NoError(t, err)
	require.Len(t, units, 4)

	var settlers []game.Unit
	for _, u := range units {
		if u.DefinitionID == unitSettler {
			settlers = append(settlers, u)
		}
	}
	require.Len(t, settlers, 2)
	assert.NotEqual(t, settlers[0].PlayerID, settlers[1].PlayerID)
	assert.GreaterOrEqual(t, game.Distance(settlers[0].Pos(), settlers[1].Pos()), 10)
	assert.True(t, w.HasHoldings(1))
	assert.True(t, w.HasHoldings(2))

	_, err = w.SpawnStart([]int{9})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}
