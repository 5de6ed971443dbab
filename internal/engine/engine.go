package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/rules"
	"go.uber.org/zap"
)

var ErrUnknownUnit = errors.New("unknown unit")
var ErrUnknownCity = errors.New("unknown city")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrNotOwner = errors.New("not owner")
var ErrNoPath = errors.New("no path")
var ErrCannotSettle = errors.New("cannot settle here")
var ErrLocked = errors.New("prerequisites not met")
var ErrAlreadyKnown = errors.New("already known")
var ErrNoPolicyPoints = errors.New("no policy points")
var ErrUnsupportedCommand = errors.New("unsupported command")

// minCitySpacing is the smallest hex distance allowed between city centers.
const minCitySpacing = 3

type EventType string

const (
	EvtUnitUpdated   EventType = "UnitUpdated"
	EvtUnitAdded     EventType = "UnitAdded"
	EvtUnitRemoved   EventType = "UnitRemoved"
	EvtCityUpdated   EventType = "CityUpdated"
	EvtCityAdded     EventType = "CityAdded"
	EvtCityRemoved   EventType = "CityRemoved"
	EvtPlayerUpdated EventType = "PlayerUpdated"
	EvtTileUpdated   EventType = "TileUpdated"
)

// Event describes one change to the world. Only the field matching Type is set.
type Event struct {
	Type   EventType
	UnitID int
	Unit   game.Unit
	City   game.City
	Player game.Player
	Tile   game.Tile
}

// World is the authoritative board, unit, city and player state of a match.
// It is not safe for concurrent use; the match goroutine owns it.
type World struct {
	Board    *game.Board
	rules    *rules.Catalog
	units    map[int]*game.Unit
	cities   map[int]*game.City
	players  map[int]*game.Player
	nextUnit int
	nextCity int
	log      *zap.Logger
}

func NewWorld(r *rules.Catalog, board *game.Board, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		log:      log.Named("engine"),
		Board:    board,
		rules:    r,
		units:    make(map[int]*game.Unit),
		cities:   make(map[int]*game.City),
		players:  make(map[int]*game.Player),
		nextUnit: 1,
		nextCity: 1,
	}
}

// AddPlayer seats a lobby player in the match with no research selected.
func (w *World) AddPlayer(b game.BasicPlayer) {
	w.players[b.InstanceID] = &game.Player{
		InstanceID: b.InstanceID,
		Name:       b.Name,
		EmpireID:   b.EmpireID,
		IsHost:     b.IsHost,
		ResearchID: game.NoResearch,
	}
}

func (w *World) Player(id int) (game.Player, bool) {
	p, ok := w.players[id]
	if !ok {
		return game.Player{}, false
	}
	return clonePlayer(*p), true
}

func (w *World) Unit(id int) (game.Unit, bool) {
	u, ok := w.units[id]
	if !ok {
		return game.Unit{}, false
	}
	return cloneUnit(*u), true
}

func (w *World) City(id int) (game.City, bool) {
	c, ok := w.cities[id]
	if !ok {
		return game.City{}, false
	}
	return cloneCity(*c), true
}

// Units returns every unit ordered by ID.
func (w *World) Units() []game.Unit {
	out := make([]game.Unit, 0, len(w.units))
	for _, u := range w.sortedUnits() {
		out = append(out, cloneUnit(*u))
	}
	return out
}

// Cities returns every city ordered by ID.
func (w *World) Cities() []game.City {
	out := make([]game.City, 0, len(w.cities))
	for _, c := range w.sortedCities() {
		out = append(out, cloneCity(*c))
	}
	return out
}

// HasHoldings reports whether the player still owns a city or a unit.
func (w *World) HasHoldings(playerID int) bool {
	for _, u := range w.units {
		if u.PlayerID == playerID {
			return true
		}
	}
	for _, c := range w.cities {
		if c.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Snapshot is the full resend for one player: its own state plus every city
// and unit.
func (w *World) Snapshot(playerID int) (game.Player, []game.City, []game.Unit) {
	p, _ := w.Player(playerID)
	return p, w.Cities(), w.Units()
}

func (w *World) SpawnUnit(playerID, definitionID int, at game.Point) (game.Unit, error) {
	def, err := w.rules.Units.GetByID(definitionID)
	if err != nil {
		return game.Unit{}, err
	}
	if _, ok := w.players[playerID]; !ok {
		return game.Unit{}, fmt.Errorf("spawn unit for %d: %w", playerID, ErrUnknownPlayer)
	}
	u := &game.Unit{
		ID:           w.nextUnit,
		DefinitionID: definitionID,
		PlayerID:     playerID,
		X:            at.X,
		Y:            at.Y,
		Sight:        def.Sight,
		Movement:     def.Movement,
		MovesLeft:    def.Movement,
		HP:           def.HP,
	}
	w.nextUnit++
	w.units[u.ID] = u
	return cloneUnit(*u), nil
}

// FoundCity claims the center tile and its unclaimed land neighbours.
func (w *World) FoundCity(playerID int, name string, at game.Point) (game.City, []game.Tile, error) {
	center := w.Board.Tile(at)
	if center == nil || !center.Terrain.Passable() || center.CityID != 0 {
		return game.City{}, nil, ErrCannotSettle
	}
	for _, c := range w.cities {
		if game.Distance(c.Center(), at) < minCitySpacing {
			return game.City{}, nil, ErrCannotSettle
		}
	}

	c := &game.City{ID: w.nextCity, PlayerID: playerID, Name: name, X: at.X, Y: at.Y, Population: 1}
	w.nextCity++
	w.cities[c.ID] = c

	claimed := []game.Tile{w.claim(c, at)}
	for _, n := range w.Board.Neighbors(at) {
		t := w.Board.Tile(n)
		if t.CityID == 0 && t.Terrain != game.TerrainOcean {
			claimed = append(claimed, w.claim(c, n))
		}
	}
	return cloneCity(*c), claimed, nil
}

func (w *World) claim(c *game.City, p game.Point) game.Tile {
	t := w.Board.Tile(p)
	t.CityID = c.ID
	c.Tiles = append(c.Tiles, p)
	return *t
}

func (w *World) cityName(playerID int) string {
	n := 1
	for _, c := range w.cities {
		if c.PlayerID == playerID {
			n++
		}
	}
	p := w.players[playerID]
	if empire, err := w.rules.Empires.GetByID(p.EmpireID); err == nil {
		return fmt.Sprintf("%s %d", empire.Name, n)
	}
	return fmt.Sprintf("City %d", n)
}

// ApplyUnitCommand validates and applies a unit order from playerID.
func (w *World) ApplyUnitCommand(playerID int, cmd game.UnitCommand) ([]Event, error) {
	u, ok := w.units[cmd.UnitID]
	if !ok {
		return nil, fmt.Errorf("unit %d: %w", cmd.UnitID, ErrUnknownUnit)
	}
	if u.PlayerID != playerID {
		return nil, fmt.Errorf("unit %d: %w", cmd.UnitID, ErrNotOwner)
	}

	switch cmd.Kind {
	case game.UnitMove:
		path, ok := FindPath(w.Board, u.Pos(), cmd.Target)
		if !ok {
			return nil, fmt.Errorf("unit %d to %v: %w", u.ID, cmd.Target, ErrNoPath)
		}
		u.Path = path
		u.Sleeping = false
		u.Skipped = false
		w.moveAlongPath(u)

	case game.UnitSleep:
		u.Sleeping = true
		u.Path = nil

	case game.UnitWake:
		u.Sleeping = false

	case game.UnitSkip:
		u.Skipped = true

	case game.UnitSettle:
		def, err := w.rules.Units.GetByID(u.DefinitionID)
		if err != nil {
			return nil, err
		}
		if !def.Settler {
			return nil, fmt.Errorf("unit %d is a %s: %w", u.ID, def.Name, ErrCannotSettle)
		}
		city, tiles, err := w.FoundCity(playerID, w.cityName(playerID), u.Pos())
		if err != nil {
			return nil, err
		}
		delete(w.units, u.ID)
		events := []Event{
			{Type: EvtUnitRemoved, UnitID: u.ID},
			{Type: EvtCityAdded, City: city},
		}
		for _, t := range tiles {
			events = append(events, Event{Type: EvtTileUpdated, Tile: t})
		}
		return events, nil

	case game.UnitDisband:
		delete(w.units, u.ID)
		return []Event{{Type: EvtUnitRemoved, UnitID: u.ID}}, nil

	default:
		return nil, ErrUnsupportedCommand
	}

	return []Event{{Type: EvtUnitUpdated, Unit: cloneUnit(*u)}}, nil
}

// ApplyCityCommand validates and applies a production order from playerID.
func (w *World) ApplyCityCommand(playerID int, cmd game.CityCommand) ([]Event, error) {
	c, ok := w.cities[cmd.CityID]
	if !ok {
		return nil, fmt.Errorf("city %d: %w", cmd.CityID, ErrUnknownCity)
	}
	if c.PlayerID != playerID {
		return nil, fmt.Errorf("city %d: %w", cmd.CityID, ErrNotOwner)
	}

	switch cmd.Kind {
	case game.CityEnqueue:
		prod, err := w.rules.Productions.GetByID(cmd.ProductionID)
		if err != nil {
			return nil, err
		}
		if prod.RequiresTech >= 0 && !w.players[playerID].HasTechnology(prod.RequiresTech) {
			return nil, fmt.Errorf("production %s: %w", prod.Name, ErrLocked)
		}
		c.Queue = append(c.Queue, prod.ID)

	case game.CityClearQueue:
		c.Queue = nil

	default:
		return nil, ErrUnsupportedCommand
	}
	return []Event{{Type: EvtCityUpdated, City: cloneCity(*c)}}, nil
}

// ApplyPlayerCommand handles research and policy choices.
func (w *World) ApplyPlayerCommand(playerID int, cmd game.PlayerCommand) ([]Event, error) {
	p, ok := w.players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %d: %w", playerID, ErrUnknownPlayer)
	}

	switch cmd.Kind {
	case game.PlayerSelectResearch:
		tech, err := w.rules.Technologies.GetByID(cmd.ID)
		if err != nil {
			return nil, err
		}
		if p.HasTechnology(tech.ID) {
			return nil, fmt.Errorf("technology %s: %w", tech.Name, ErrAlreadyKnown)
		}
		if !w.rules.TechnologyAvailable(tech, p.HasTechnology) {
			return nil, fmt.Errorf("technology %s: %w", tech.Name, ErrLocked)
		}
		p.ResearchID = tech.ID

	case game.PlayerAdoptPolicy:
		policy, err := w.rules.Policies.GetByID(cmd.ID)
		if err != nil {
			return nil, err
		}
		if p.HasPolicy(policy.ID) {
			return nil, fmt.Errorf("policy %s: %w", policy.Name, ErrAlreadyKnown)
		}
		if p.PolicyPoints <= 0 {
			return nil, ErrNoPolicyPoints
		}
		p.Policies = append(p.Policies, policy.ID)
		p.PolicyPoints--

	default:
		return nil, ErrUnsupportedCommand
	}
	return []Event{{Type: EvtPlayerUpdated, Player: clonePlayer(*p)}}, nil
}

func (w *World) moveAlongPath(u *game.Unit) {
	for u.MovesLeft > 0 && len(u.Path) > 0 {
		next := u.Path[0]
		t := w.Board.Tile(next)
		if t == nil || !t.Terrain.Passable() {
			u.Path = nil
			return
		}
		u.X, u.Y = next.X, next.Y
		u.MovesLeft = max(0, u.MovesLeft-t.Terrain.MoveCost())
		u.Path = u.Path[1:]
	}
	if len(u.Path) == 0 {
		u.Path = nil
	}
}

func (w *World) sortedUnits() []*game.Unit {
	out := make([]*game.Unit, 0, len(w.units))
	for _, u := range w.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) sortedCities() []*game.City {
	out := make([]*game.City, 0, len(w.cities))
	for _, c := range w.cities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) sortedPlayers() []*game.Player {
	out := make([]*game.Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}
