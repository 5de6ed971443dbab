package client

import (
	"sync"

	"github.com/arwic/dominion/internal/game"
)

// Cache is the two-tier fog of war. Explored tiles are remembered forever as
// last seen; the unit and city lists only hold what the latest Recompute
// could see. Readers and Recompute share one mutex.
type Cache struct {
	mu     sync.Mutex
	board  [][]*game.Tile
	units  []game.Unit
	cities []game.City
}

func NewCache() *Cache { return &Cache{} }

// Reset forgets everything, for a new board.
func (c *Cache) Reset(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.board = make([][]*game.Tile, height)
	for y := range c.board {
		c.board[y] = make([]*game.Tile, width)
	}
	c.units = nil
	c.cities = nil
}

// Recompute rebuilds the visible unit and city lists for playerID and adds
// every tile in sight to the explored set. Tiles in sight are refreshed from
// board; tiles out of sight keep their last seen state.
func (c *Cache) Recompute(playerID int, board *game.Board, units []game.Unit, cities []game.City) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if board == nil {
		return
	}
	if len(c.board) != board.Height || (board.Height > 0 && len(c.board[0]) != board.Width) {
		c.board = make([][]*game.Tile, board.Height)
		for y := range c.board {
			c.board[y] = make([]*game.Tile, board.Width)
		}
	}

	foreignAt := make(map[game.Point][]int)
	for i, u := range units {
		if u.PlayerID != playerID {
			foreignAt[u.Pos()] = append(foreignAt[u.Pos()], i)
		}
	}
	seen := make(map[int]bool)
	reveal := func(p game.Point) {
		t := board.Tile(p)
		if t == nil {
			return
		}
		cp := *t
		c.board[p.Y][p.X] = &cp
		for _, i := range foreignAt[p] {
			seen[i] = true
		}
	}

	for _, u := range units {
		if u.PlayerID != playerID {
			continue
		}
		for _, p := range board.Within(u.Pos(), u.Sight) {
			reveal(p)
		}
	}

	owned := ownedCityIDs(playerID, cities)
	for y := range board.Tiles {
		for x := range board.Tiles[y] {
			t := board.Tiles[y][x]
			if t.CityID == 0 || !owned[t.CityID] {
				continue
			}
			reveal(t.Point())
			for _, n := range board.Neighbors(t.Point()) {
				reveal(n)
			}
		}
	}

	c.units = c.units[:0]
	for i, u := range units {
		if u.PlayerID == playerID || seen[i] {
			c.units = append(c.units, u)
		}
	}
	c.cities = c.cities[:0]
	for _, city := range cities {
		if city.PlayerID == playerID || c.exploredLocked(city.Center()) {
			c.cities = append(c.cities, city)
		}
	}
}

func (c *Cache) exploredLocked(p game.Point) bool {
	return p.Y >= 0 && p.Y < len(c.board) && p.X >= 0 && p.X < len(c.board[p.Y]) && c.board[p.Y][p.X] != nil
}

func (c *Cache) Explored(p game.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exploredLocked(p)
}

// Tile returns the last seen state of an explored tile.
func (c *Cache) Tile(p game.Point) (game.Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exploredLocked(p) {
		return game.Tile{}, false
	}
	return *c.board[p.Y][p.X], true
}

// ExploredTiles lists every explored tile in row order.
func (c *Cache) ExploredTiles() []game.Tile {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []game.Tile
	for _, row := range c.board {
		for _, t := range row {
			if t != nil {
				out = append(out, *t)
			}
		}
	}
	return out
}

func (c *Cache) Units() []game.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]game.Unit(nil), c.units...)
}

func (c *Cache) Cities() []game.City {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]game.City(nil), c.cities...)
}

// Visible reports whether p is in sight of playerID right now: within an
// owned unit's sight radius, or on or next to an owned city tile. It is never
// cached.
func Visible(playerID int, board *game.Board, units []game.Unit, cities []game.City, p game.Point) bool {
	if board == nil || !board.InBounds(p) {
		return false
	}
	for _, u := range units {
		if u.PlayerID == playerID && game.Distance(u.Pos(), p) <= u.Sight {
			return true
		}
	}
	owned := ownedCityIDs(playerID, cities)
	if t := board.Tile(p); owned[t.CityID] {
		return true
	}
	for _, n := range board.Neighbors(p) {
		if owned[board.Tile(n).CityID] {
			return true
		}
	}
	return false
}

func ownedCityIDs(playerID int, cities []game.City) map[int]bool {
	owned := make(map[int]bool)
	for _, c := range cities {
		if c.PlayerID == playerID {
			owned[c.ID] = true
		}
	}
	return owned
}
