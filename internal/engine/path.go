package engine

import (
	"container/heap"

	"github.com/arwic/dominion/internal/game"
)

type pathNode struct {
	p     game.Point
	cost  int
	score int
	seq   int
}

type openSet []*pathNode

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].score != o[j].score {
		return o[i].score < o[j].score
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(*pathNode)) }
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

// FindPath returns the cheapest route from one tile to another, excluding the
// start. ok is false when the target is impassable or unreachable. A route to
// the start itself is empty.
func FindPath(board *game.Board, from, to game.Point) ([]game.Point, bool) {
	target := board.Tile(to)
	if target == nil || !target.Terrain.Passable() || !board.InBounds(from) {
		return nil, false
	}
	if from == to {
		return nil, true
	}

	cost := map[game.Point]int{from: 0}
	prev := make(map[game.Point]game.Point)
	open := &openSet{{p: from, score: game.Distance(from, to)}}
	seq := 0

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if cur.p == to {
			break
		}
		if cur.cost > cost[cur.p] {
			continue
		}
		for _, n := range board.Neighbors(cur.p) {
			t := board.Tile(n)
			if !t.Terrain.Passable() {
				continue
			}
			next := cur.cost + t.Terrain.MoveCost()
			if old, seen := cost[n]; seen && old <= next {
				continue
			}
			cost[n] = next
			prev[n] = cur.p
			seq++
			heap.Push(open, &pathNode{p: n, cost: next, score: next + game.Distance(n, to), seq: seq})
		}
	}

	if _, ok := prev[to]; !ok {
		return nil, false
	}
	var path []game.Point
	for p := to; p != from; p = prev[p] {
		path = append(path, p)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}
