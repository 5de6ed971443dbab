package engine

import "github.com/arwic/dominion/internal/game"

func cloneUnit(u game.Unit) game.Unit {
	if u.Path != nil {
		u.Path = append([]game.Point(nil), u.Path...)
	}
	return u
}

func cloneCity(c game.City) game.City {
	if c.Tiles != nil {
		c.Tiles = append([]game.Point(nil), c.Tiles...)
	}
	if c.Queue != nil {
		c.Queue = append([]int(nil), c.Queue...)
	}
	if c.Buildings != nil {
		c.Buildings = append([]int(nil), c.Buildings...)
	}
	return c
}

func clonePlayer(p game.Player) game.Player {
	if p.Technologies != nil {
		p.Technologies = append([]int(nil), p.Technologies...)
	}
	if p.Policies != nil {
		p.Policies = append([]int(nil), p.Policies...)
	}
	return p
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
