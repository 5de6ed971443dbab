package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrFactoryOutOfSync means an ID is outside a factory's known range, which
// indicates the client and server run different data packs.
var ErrFactoryOutOfSync = errors.New("factory out of sync")

// Factory is a read-only lookup table whose IDs equal slice indices.
type Factory[T any] struct {
	Name  string
	Items []T
}

func (f Factory[T]) GetByID(id int) (T, error) {
	if id < 0 || id >= len(f.Items) {
		var zero T
		return zero, fmt.Errorf("%s factory: id %d not in [0,%d): %w", f.Name, id, len(f.Items), ErrFactoryOutOfSync)
	}
	return f.Items[id], nil
}

func (f Factory[T]) Count() int { return len(f.Items) }

func (f *Factory[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &f.Items)
}

func (f Factory[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Items)
}

type BuildingDef struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Cost       int    `json:"cost"`
	Food       int    `json:"food"`
	Production int    `json:"production"`
	Science    int    `json:"science"`
	Culture    int    `json:"culture"`
	Gold       int    `json:"gold"`
}

type UnitDef struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Cost     int    `json:"cost"`
	Movement int    `json:"movement"`
	Sight    int    `json:"sight"`
	HP       int    `json:"hp"`
	Settler  bool   `json:"settler"`
}

// ProductionDef is a city queue entry; exactly one of UnitID and BuildingID
// is non-negative.
type ProductionDef struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Cost         int    `json:"cost"`
	UnitID       int    `json:"unit_id"`
	BuildingID   int    `json:"building_id"`
	RequiresTech int    `json:"requires_tech"`
}

type TechnologyDef struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Cost          int    `json:"cost"`
	Prerequisites []int  `json:"prerequisites"`
}

type PolicyDef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type EmpireDef struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Leader        string `json:"leader"`
	StartingUnits []int  `json:"starting_units"`
}

// Catalog bundles every rules lookup service handed to the core.
type Catalog struct {
	Buildings    Factory[BuildingDef]   `json:"buildings"`
	Units        Factory[UnitDef]       `json:"units"`
	Productions  Factory[ProductionDef] `json:"productions"`
	Technologies Factory[TechnologyDef] `json:"technologies"`
	Policies     Factory[PolicyDef]     `json:"policies"`
	Empires      Factory[EmpireDef]     `json:"empires"`
}

// TechnologyAvailable reports whether every prerequisite of tech is in known.
func (c *Catalog) TechnologyAvailable(tech TechnologyDef, known func(int) bool) bool {
	for _, pre := range tech.Prerequisites {
		if !known(pre) {
			return false
		}
	}
	return true
}

func (c *Catalog) name() {
	c.Buildings.Name = "building"
	c.Units.Name = "unit"
	c.Productions.Name = "production"
	c.Technologies.Name = "technology"
	c.Policies.Name = "policy"
	c.Empires.Name = "empire"
}

func (c *Catalog) validate() error {
	check := func(name string, n int, idAt func(int) int) error {
		for i := 0; i < n; i++ {
			if idAt(i) != i {
				return fmt.Errorf("%s %d has id %d", name, i, idAt(i))
			}
		}
		return nil
	}
	if err := errors.Join(
		check("building", c.Buildings.Count(), func(i int) int { return c.Buildings.Items[i].ID }),
		check("unit", c.Units.Count(), func(i int) int { return c.Units.Items[i].ID }),
		check("production", c.Productions.Count(), func(i int) int { return c.Productions.Items[i].ID }),
		check("technology", c.Technologies.Count(), func(i int) int { return c.Technologies.Items[i].ID }),
		check("policy", c.Policies.Count(), func(i int) int { return c.Policies.Items[i].ID }),
		check("empire", c.Empires.Count(), func(i int) int { return c.Empires.Items[i].ID }),
	); err != nil {
		return err
	}

	for _, p := range c.Productions.Items {
		if (p.UnitID < 0) == (p.BuildingID < 0) {
			return fmt.Errorf("production %d must name exactly one unit or building", p.ID)
		}
		if p.UnitID >= 0 {
			if _, err := c.Units.GetByID(p.UnitID); err != nil {
				return fmt.Errorf("production %d: %w", p.ID, err)
			}
		}
		if p.BuildingID >= 0 {
			if _, err := c.Buildings.GetByID(p.BuildingID); err != nil {
				return fmt.Errorf("production %d: %w", p.ID, err)
			}
		}
		if p.RequiresTech >= 0 {
			if _, err := c.Technologies.GetByID(p.RequiresTech); err != nil {
				return fmt.Errorf("production %d: %w", p.ID, err)
			}
		}
	}
	for _, e := range c.Empires.Items {
		for _, u := range e.StartingUnits {
			if _, err := c.Units.GetByID(u); err != nil {
				return fmt.Errorf("empire %d: %w", e.ID, err)
			}
		}
	}
	return nil
}
