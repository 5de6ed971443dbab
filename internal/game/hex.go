package game

// Point is a board coordinate. Boards use the "odd-r" offset layout: odd
// rows are shoved half a tile to the right.
type Point struct {
	X int
	Y int
}

func (p Point) cube() (q, s, r int) {
	q = p.X - (p.Y-(p.Y&1))/2
	r = p.Y
	s = -q - r
	return q, s, r
}

// Distance is the number of hex steps between a and b.
func Distance(a, b Point) int {
	aq, as, ar := a.cube()
	bq, bs, br := b.cube()
	return max(abs(aq-bq), abs(as-bs), abs(ar-br))
}

var (
	evenRowOffsets = [6]Point{{1, 0}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}}
	oddRowOffsets  = [6]Point{{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {0, 1}, {1, 1}}
)

// Adjacent returns the six neighbours of p without any bounds check.
func Adjacent(p Point) [6]Point {
	offsets := evenRowOffsets
	if p.Y&1 == 1 {
		offsets = oddRowOffsets
	}
	var out [6]Point
	for i, o := range offsets {
		out[i] = Point{X: p.X + o.X, Y: p.Y + o.Y}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
