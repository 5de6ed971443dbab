package client

import (
	"context"
	"errors"

	"github.com/arwic/dominion/internal/game"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Autopilot plays the local player by answering each unmet phase with the
// first legal choice. Orders already sent this turn are not repeated while
// the server's answer is in flight.
type Autopilot struct {
	s   *Synchronizer
	log *zap.Logger
	// EmpireID is requested once the lobby has been joined; negative keeps
	// the server's default.
	EmpireID int
	// StartWith lets a host start the game once this many players are in
	// the lobby. Zero never starts.
	StartWith int

	turn      int
	research  bool
	policies  map[int]bool
	cities    map[int]bool
	units     map[int]bool
	picked    bool
	startSent bool
}

func NewAutopilot(s *Synchronizer, log *zap.Logger) *Autopilot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Autopilot{s: s, log: log.Named("autopilot"), EmpireID: -1, turn: -1}
}

// Run reacts to events until the synchronizer disconnects or ctx ends.
func (a *Autopilot) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			var err error
			switch ev.Kind {
			case EventLobby:
				err = a.Lobby()
			case EventTurn, EventPhase:
				err = a.Step()
			case EventGameOver:
				return nil
			}
			if err != nil {
				a.log.Warn("autopilot step failed", zap.Stringer("event", ev.Kind), zap.Error(err))
			}
		}
	}
}

// Lobby picks the empire and, as host, starts the game when enough players
// have joined.
func (a *Autopilot) Lobby() error {
	var err error
	if !a.picked && a.EmpireID >= 0 && a.s.Rules() != nil {
		a.picked = true
		err = a.s.SelectEmpire(a.EmpireID)
	}
	st := a.s.Lobby()
	if a.StartWith > 0 && !a.startSent && a.s.Player().IsHost && len(st.Players) >= a.StartWith {
		a.startSent = true
		err = multierr.Append(err, a.s.StartGame())
	}
	return err
}

// Step issues the orders the current phase is waiting for.
func (a *Autopilot) Step() error {
	turn, _, _ := a.s.Turn()
	if turn != a.turn {
		a.turn = turn
		a.research = false
		a.policies = make(map[int]bool)
		a.cities = make(map[int]bool)
		a.units = make(map[int]bool)
	}

	switch a.s.Phase() {
	case PhaseChooseResearch:
		return a.chooseResearch()
	case PhaseChooseSocialPolicy:
		return a.choosePolicy()
	case PhaseChooseProduction:
		return a.chooseProduction()
	case PhaseUnitOrders:
		return a.orderUnits()
	}
	return nil
}

func (a *Autopilot) chooseResearch() error {
	if a.research {
		return nil
	}
	a.s.mu.RLock()
	techs := a.s.availableTechnologies()
	a.s.mu.RUnlock()
	if len(techs) == 0 {
		return nil
	}
	a.research = true
	return a.s.SelectResearch(techs[0])
}

func (a *Autopilot) choosePolicy() error {
	a.s.mu.RLock()
	policies := a.s.availablePolicies()
	a.s.mu.RUnlock()
	for _, id := range policies {
		if !a.policies[id] {
			a.policies[id] = true
			return a.s.AdoptPolicy(id)
		}
	}
	return nil
}

func (a *Autopilot) chooseProduction() error {
	r := a.s.Rules()
	if r == nil {
		return ErrNoRules
	}
	p := a.s.Player()
	prod := -1
	for _, def := range r.Productions.Items {
		if def.RequiresTech < 0 || p.HasTechnology(def.RequiresTech) {
			prod = def.ID
			break
		}
	}
	if prod < 0 {
		return nil
	}

	var err error
	for _, c := range a.s.Cities() {
		if c.PlayerID != p.InstanceID || len(c.Queue) > 0 || a.cities[c.ID] {
			continue
		}
		a.cities[c.ID] = true
		err = multierr.Append(err, a.s.CommandCity(game.CityCommand{CityID: c.ID, Kind: game.CityEnqueue, ProductionID: prod}))
	}
	return err
}

// orderUnits founds a first city with a settler and skips everything else.
// A settle the server refuses is covered by the skip that follows it.
func (a *Autopilot) orderUnits() error {
	r := a.s.Rules()
	if r == nil {
		return ErrNoRules
	}
	p := a.s.Player()
	hasCity := false
	for _, c := range a.s.Cities() {
		if c.PlayerID == p.InstanceID {
			hasCity = true
			break
		}
	}

	var err error
	for _, u := range a.s.Units() {
		if u.PlayerID != p.InstanceID || u.HasOrders() || a.units[u.ID] {
			continue
		}
		a.units[u.ID] = true
		if def, derr := r.Units.GetByID(u.DefinitionID); derr == nil && def.Settler && !hasCity {
			hasCity = true
			err = multierr.Append(err, a.s.CommandUnit(game.UnitCommand{UnitID: u.ID, Kind: game.UnitSettle}))
		}
		if serr := a.s.CommandUnit(game.UnitCommand{UnitID: u.ID, Kind: game.UnitSkip}); serr != nil && !errors.Is(serr, ErrUnknownUnit) {
			err = multierr.Append(err, serr)
		}
	}
	return err
}
