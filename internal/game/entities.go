package game

// NoResearch marks a player with no technology selected.
const NoResearch = -1

type Unit struct {
	ID           int
	DefinitionID int
	PlayerID     int
	X            int
	Y            int
	Sight        int
	Movement     int
	MovesLeft    int
	HP           int
	Path         []Point
	Sleeping     bool
	Skipped      bool
}

func (u Unit) Pos() Point { return Point{X: u.X, Y: u.Y} }

// HasOrders reports whether the unit needs no further input this turn.
func (u Unit) HasOrders() bool {
	return len(u.Path) > 0 || u.Sleeping || u.Skipped || u.MovesLeft <= 0
}

type City struct {
	ID         int
	PlayerID   int
	Name       string
	X          int
	Y          int
	Tiles      []Point
	Population int
	Food       int
	Production int
	Queue      []int
	Buildings  []int
}

func (c City) Center() Point { return Point{X: c.X, Y: c.Y} }

// Player is the authoritative per-session game state.
type Player struct {
	InstanceID   int
	Name         string
	EmpireID     int
	IsHost       bool
	ResearchID   int
	Science      int
	Technologies []int
	Culture      int
	PolicyPoints int
	Policies     []int
	Gold         int
}

func (p Player) Basic() BasicPlayer {
	return BasicPlayer{InstanceID: p.InstanceID, Name: p.Name, EmpireID: p.EmpireID, IsHost: p.IsHost}
}

func (p Player) HasTechnology(id int) bool {
	for _, t := range p.Technologies {
		if t == id {
			return true
		}
	}
	return false
}

func (p Player) HasPolicy(id int) bool {
	for _, t := range p.Policies {
		if t == id {
			return true
		}
	}
	return false
}

// BasicPlayer is the lobby-visible subset of a Player.
type BasicPlayer struct {
	InstanceID int
	Name       string
	EmpireID   int
	IsHost     bool
}
