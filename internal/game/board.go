package game

type Terrain int

const (
	TerrainOcean Terrain = iota
	TerrainGrassland
	TerrainPlains
	TerrainDesert
	TerrainHills
	TerrainMountain
)

func (t Terrain) String() string {
	switch t {
	case TerrainOcean:
		return "ocean"
	case TerrainGrassland:
		return "grassland"
	case TerrainPlains:
		return "plains"
	case TerrainDesert:
		return "desert"
	case TerrainHills:
		return "hills"
	case TerrainMountain:
		return "mountain"
	default:
		return "unknown"
	}
}

func (t Terrain) Passable() bool {
	return t != TerrainOcean && t != TerrainMountain
}

// MoveCost is the movement points spent entering a tile of this terrain.
func (t Terrain) MoveCost() int {
	if t == TerrainHills {
		return 2
	}
	return 1
}

// Tile is one board cell. CityID is zero when no city has claimed the tile.
type Tile struct {
	X       int
	Y       int
	Terrain Terrain
	CityID  int
}

func (t Tile) Point() Point { return Point{X: t.X, Y: t.Y} }

// Board is indexed Tiles[y][x].
type Board struct {
	Width  int
	Height int
	Tiles  [][]Tile
}

func NewBoard(width, height int) *Board {
	b := &Board{Width: width, Height: height, Tiles: make([][]Tile, height)}
	for y := range b.Tiles {
		b.Tiles[y] = make([]Tile, width)
		for x := range b.Tiles[y] {
			b.Tiles[y][x] = Tile{X: x, Y: y}
		}
	}
	return b
}

func (b *Board) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// Tile returns the tile at p, or nil when p is off the board.
func (b *Board) Tile(p Point) *Tile {
	if !b.InBounds(p) {
		return nil
	}
	return &b.Tiles[p.Y][p.X]
}

// Set overwrites the tile at the tile's own coordinates.
func (b *Board) Set(t Tile) bool {
	dst := b.Tile(t.Point())
	if dst == nil {
		return false
	}
	*dst = t
	return true
}

// Neighbors returns the in-bounds neighbours of p.
func (b *Board) Neighbors(p Point) []Point {
	out := make([]Point, 0, 6)
	for _, n := range Adjacent(p) {
		if b.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Within returns every in-bounds point whose hex distance from center is at
// most radius, center included.
func (b *Board) Within(center Point, radius int) []Point {
	if radius < 0 {
		return nil
	}
	var out []Point
	for y := center.Y - radius; y <= center.Y+radius; y++ {
		for x := center.X - radius - 1; x <= center.X+radius+1; x++ {
			p := Point{X: x, Y: y}
			if b.InBounds(p) && Distance(center, p) <= radius {
				out = append(out, p)
			}
		}
	}
	return out
}

func (b *Board) Clone() *Board {
	c := &Board{Width: b.Width, Height: b.Height, Tiles: make([][]Tile, len(b.Tiles))}
	for y, row := range b.Tiles {
		c.Tiles[y] = append([]Tile(nil), row...)
	}
	return c
}
