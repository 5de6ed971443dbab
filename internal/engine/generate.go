package engine

import (
	"errors"
	"math"

	"github.com/arwic/dominion/internal/game"
	"github.com/ojrac/opensimplex-go"
)

var ErrNoStartingTile = errors.New("no passable starting tile")

// Elevation bands. Shape plus noise below seaLevel is ocean.
const (
	seaLevel      = 0.45
	hillLevel     = 0.95
	mountainLevel = 1.15
)

// GenerateBoard builds a board for the lobby settings. The same seed always
// yields the same board. The outer ring is always ocean.
func GenerateBoard(worldType game.WorldType, size game.WorldSize, seed int64) *game.Board {
	width, height := size.Dimensions()
	elevation := opensimplex.New(seed)
	moisture := opensimplex.New(seed + 1)
	freq := noiseFrequency(worldType)
	board := game.NewBoard(width, height)

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			nx, ny := float64(x)/float64(width), float64(y)/float64(height)
			fx, fy := nx*freq, ny*freq
			elev := landShape(worldType, nx, ny) +
				0.35*elevation.Eval2(fx, fy) +
				0.15*elevation.Eval2(2*fx, 2*fy)
			if elev < seaLevel {
				continue
			}
			board.Tiles[y][x].Terrain = terrainFor(elev, moisture.Eval2(1.5*fx, 1.5*fy))
		}
	}
	return board
}

func noiseFrequency(worldType game.WorldType) float64 {
	switch worldType {
	case game.WorldTypePangaea:
		return 2.5
	case game.WorldTypeArchipelago:
		return 6
	default:
		return 3
	}
}

// landShape is 1 at a landmass center and falls off linearly with distance
// in board-normalised units.
func landShape(worldType game.WorldType, nx, ny float64) float64 {
	switch worldType {
	case game.WorldTypePangaea:
		return falloff(nx, ny, 0.5, 0.5, 0.4)
	case game.WorldTypeArchipelago:
		return math.Max(0.35, falloff(nx, ny, 0.5, 0.5, 0.12))
	default:
		return math.Max(falloff(nx, ny, 0.25, 0.5, 0.3), falloff(nx, ny, 0.75, 0.5, 0.3))
	}
}

func falloff(nx, ny, cx, cy, radius float64) float64 {
	return 1 - math.Hypot(nx-cx, ny-cy)/radius
}

func terrainFor(elev, wet float64) game.Terrain {
	switch {
	case elev >= mountainLevel:
		return game.TerrainMountain
	case elev >= hillLevel:
		return game.TerrainHills
	case wet < -0.35:
		return game.TerrainDesert
	case wet < 0.15:
		return game.TerrainPlains
	default:
		return game.TerrainGrassland
	}
}

// SpawnStart places each player's empire starting units on passable tiles,
// spreading players as far apart as the board allows. Players are placed in
// the order given.
func (w *World) SpawnStart(playerIDs []int) ([]game.Unit, error) {
	var land []game.Point
	for y := range w.Board.Tiles {
		for x := range w.Board.Tiles[y] {
			if w.Board.Tiles[y][x].Terrain.Passable() {
				land = append(land, game.Point{X: x, Y: y})
			}
		}
	}
	if len(land) == 0 {
		return nil, ErrNoStartingTile
	}

	var starts []game.Point
	var spawned []game.Unit
	for _, pid := range playerIDs {
		p, ok := w.players[pid]
		if !ok {
			return spawned, ErrUnknownPlayer
		}
		empire, err := w.rules.Empires.GetByID(p.EmpireID)
		if err != nil {
			return spawned, err
		}

		start := pickStart(land, starts, game.Point{X: w.Board.Width / 2, Y: w.Board.Height / 2})
		starts = append(starts, start)

		spots := []game.Point{start}
		for _, n := range w.Board.Neighbors(start) {
			if w.Board.Tile(n).Terrain.Passable() {
				spots = append(spots, n)
			}
		}
		for i, def := range empire.StartingUnits {
			u, err := w.SpawnUnit(pid, def, spots[i%len(spots)])
			if err != nil {
				return spawned, err
			}
			spawned = append(spawned, u)
		}
	}
	return spawned, nil
}

// pickStart chooses the land tile farthest from every existing start, or the
// one nearest to mid when nothing is placed yet. Ties go to the earlier tile.
func pickStart(land, starts []game.Point, mid game.Point) game.Point {
	best, bestScore := land[0], -1
	for _, p := range land {
		var score int
		if len(starts) == 0 {
			score = 1<<20 - game.Distance(p, mid)
		} else {
			score = 1 << 20
			for _, s := range starts {
				score = min(score, game.Distance(p, s))
			}
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}
