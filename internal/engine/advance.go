package engine

import (
	"github.com/arwic/dominion/internal/game"
	"go.uber.org/zap"
)

type yields struct {
	food, production, science, culture, gold int
}

// AdvanceTurn runs every TurnOrder step and returns the tiles whose ownership
// changed. The result depends only on the world state.
func (w *World) AdvanceTurn() []game.Tile {
	var changed []game.Tile
	for _, step := range TurnOrder {
		changed = append(changed, step.Run(w)...)
	}
	return changed
}

func (w *World) cityYields(c *game.City) yields {
	y := yields{food: 2, production: 1 + c.Population/2, science: c.Population, culture: 1, gold: 1}
	for _, id := range c.Buildings {
		b, err := w.rules.Buildings.GetByID(id)
		if err != nil {
			w.outOfSync("city building", err, zap.Int("city", c.ID))
			continue
		}
		y.food += b.Food
		y.production += b.Production
		y.science += b.Science
		y.culture += b.Culture
		y.gold += b.Gold
	}
	return y
}

// growthThreshold is the stored food a city needs to gain a citizen.
func growthThreshold(population int) int {
	return 10 + 5*population
}

// cultureThreshold is the culture needed for the next policy point.
func cultureThreshold(p *game.Player) int {
	return 10 * (1 + len(p.Policies) + p.PolicyPoints)
}

func (w *World) advanceCities() []game.Tile {
	var changed []game.Tile
	for _, c := range w.sortedCities() {
		y := w.cityYields(c)

		c.Production += y.production
		if len(c.Queue) > 0 {
			prod, err := w.rules.Productions.GetByID(c.Queue[0])
			switch {
			case err != nil:
				w.outOfSync("production queue", err, zap.Int("city", c.ID))
				c.Queue = c.Queue[1:]
			case c.Production >= prod.Cost:
				c.Production -= prod.Cost
				c.Queue = c.Queue[1:]
				w.complete(c, prod.UnitID, prod.BuildingID)
			}
			if len(c.Queue) == 0 {
				c.Queue = nil
			}
		}

		c.Food += y.food
		if c.Food >= growthThreshold(c.Population) {
			c.Food = 0
			c.Population++
			if t, ok := w.expand(c); ok {
				changed = append(changed, t)
			}
		}
	}
	return changed
}

func (w *World) complete(c *game.City, unitID, buildingID int) {
	if unitID >= 0 {
		if _, err := w.SpawnUnit(c.PlayerID, unitID, c.Center()); err != nil {
			w.outOfSync("produced unit", err, zap.Int("city", c.ID))
		}
		return
	}
	if buildingID >= 0 && !containsInt(c.Buildings, buildingID) {
		c.Buildings = append(c.Buildings, buildingID)
	}
}

// expand claims the first unowned land tile bordering the city.
func (w *World) expand(c *game.City) (game.Tile, bool) {
	for _, owned := range c.Tiles {
		for _, n := range w.Board.Neighbors(owned) {
			t := w.Board.Tile(n)
			if t.CityID == 0 && t.Terrain != game.TerrainOcean {
				return w.claim(c, n), true
			}
		}
	}
	return game.Tile{}, false
}

func (w *World) advancePlayers() []game.Tile {
	totals := make(map[int]yields)
	for _, c := range w.sortedCities() {
		y := w.cityYields(c)
		t := totals[c.PlayerID]
		t.science += y.science
		t.culture += y.culture
		t.gold += y.gold
		totals[c.PlayerID] = t
	}

	for _, p := range w.sortedPlayers() {
		y := totals[p.InstanceID]
		p.Gold += y.gold

		if p.ResearchID != game.NoResearch {
			p.Science += y.science
			tech, err := w.rules.Technologies.GetByID(p.ResearchID)
			switch {
			case err != nil:
				w.outOfSync("research", err, zap.Int("player", p.InstanceID))
			case p.Science >= tech.Cost:
				p.Science -= tech.Cost
				p.Technologies = append(p.Technologies, tech.ID)
				p.ResearchID = game.NoResearch
			}
		}

		p.Culture += y.culture
		if need := cultureThreshold(p); p.Culture >= need {
			p.Culture -= need
			p.PolicyPoints++
		}
	}
	return nil
}

func (w *World) advanceUnits() []game.Tile {
	for _, u := range w.sortedUnits() {
		u.MovesLeft = u.Movement
		u.Skipped = false
		w.moveAlongPath(u)
	}
	return nil
}

// outOfSync reports a rules lookup that failed while advancing the turn. The
// turn still completes without the missing entry.
func (w *World) outOfSync(what string, err error, fields ...zap.Field) {
	w.log.Error("rules out of sync", append(fields, zap.String("during", what), zap.Error(err))...)
}
