package client

import (
	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"go.uber.org/zap"
)

// Phase is the local turn phase. It resets to PhaseBegin on fresh turn data.
type Phase int

const (
	PhaseBegin Phase = iota
	PhaseChooseResearch
	PhaseChooseSocialPolicy
	PhaseChooseProduction
	PhaseUnitOrders
	PhaseWaitingForPlayers
)

func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseChooseResearch:
		return "choose-research"
	case PhaseChooseSocialPolicy:
		return "choose-social-policy"
	case PhaseChooseProduction:
		return "choose-production"
	case PhaseUnitOrders:
		return "unit-orders"
	case PhaseWaitingForPlayers:
		return "waiting-for-players"
	default:
		return "unknown"
	}
}

type phaseCheck struct {
	phase Phase
	met   func(s *Synchronizer) bool
}

// phaseOrder is evaluated front to back; the first unmet check is the phase.
var phaseOrder = []phaseCheck{
	{PhaseChooseResearch, (*Synchronizer).researchChosen},
	{PhaseChooseSocialPolicy, (*Synchronizer).policiesSpent},
	{PhaseChooseProduction, (*Synchronizer).productionSet},
	{PhaseUnitOrders, (*Synchronizer).unitsOrdered},
}

func (s *Synchronizer) researchChosen() bool {
	return s.player.ResearchID != game.NoResearch || len(s.availableTechnologies()) == 0
}

func (s *Synchronizer) policiesSpent() bool {
	return s.player.PolicyPoints <= 0 || len(s.availablePolicies()) == 0
}

func (s *Synchronizer) productionSet() bool {
	for _, c := range s.cities {
		if c.PlayerID == s.player.InstanceID && len(c.Queue) == 0 {
			return false
		}
	}
	return true
}

func (s *Synchronizer) unitsOrdered() bool {
	for _, u := range s.units {
		if u.PlayerID == s.player.InstanceID && !u.HasOrders() {
			return false
		}
	}
	return true
}

func (s *Synchronizer) availableTechnologies() []int {
	if s.rules == nil {
		return nil
	}
	var out []int
	for _, t := range s.rules.Technologies.Items {
		if !s.player.HasTechnology(t.ID) && s.rules.TechnologyAvailable(t, s.player.HasTechnology) {
			out = append(out, t.ID)
		}
	}
	return out
}

func (s *Synchronizer) availablePolicies() []int {
	if s.rules == nil {
		return nil
	}
	var out []int
	for _, p := range s.rules.Policies.Items {
		if !s.player.HasPolicy(p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}

// advancePhase re-evaluates the phase. Entering PhaseWaitingForPlayers
// reports the turn as ended; leaving it again retracts that. Callers hold mu.
func (s *Synchronizer) advancePhase() {
	if !s.inTurn || s.over != nil || s.closed {
		return
	}
	next := PhaseWaitingForPlayers
	for _, c := range phaseOrder {
		if !c.met(s) {
			next = c.phase
			break
		}
	}

	switch {
	case next == PhaseWaitingForPlayers && !s.ended:
		s.ended = true
		s.send(protocol.NewFrame(protocol.KindTurnState, true))
	case next != PhaseWaitingForPlayers && s.ended:
		s.ended = false
		s.send(protocol.NewFrame(protocol.KindTurnState, false))
	}
	if next != s.phase {
		s.log.Debug("phase changed", zap.Stringer("from", s.phase), zap.Stringer("to", next), zap.Int("turn", s.turn))
		s.phase = next
		s.events.publish(Event{Kind: EventPhase, Turn: s.turn, Phase: next})
	}
}
