package hub

import (
	"github.com/arwic/dominion/internal/engine"
	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func (h *Hub) handleGameFrame(s *session.Session, f protocol.Frame) error {
	var (
		events []engine.Event
		err    error
	)
	switch f.Kind {
	case protocol.KindTurnState:
		ended, ierr := protocol.Item[bool](f, 0)
		if ierr != nil {
			return ierr
		}
		_, ierr = h.turns.SetEnded(s.Peer.ID(), ended)
		return ierr

	case protocol.KindUnitCommand:
		cmd, ierr := protocol.Item[game.UnitCommand](f, 0)
		if ierr != nil {
			return ierr
		}
		events, err = h.world.ApplyUnitCommand(s.InstanceID, cmd)

	case protocol.KindCityCommand:
		cmd, ierr := protocol.Item[game.CityCommand](f, 0)
		if ierr != nil {
			return ierr
		}
		events, err = h.world.ApplyCityCommand(s.InstanceID, cmd)

	case protocol.KindPlayerCommand:
		cmd, ierr := protocol.Item[game.PlayerCommand](f, 0)
		if ierr != nil {
			return ierr
		}
		events, err = h.world.ApplyPlayerCommand(s.InstanceID, cmd)

	default:
		return &protocol.ProtocolError{Kind: f.Kind, Phase: "game"}
	}
	if err != nil {
		return err
	}
	return h.publish(s, events)
}

// publish turns world events into frames. Board, unit and city changes go to
// everyone; player changes only to their owner.
func (h *Hub) publish(owner *session.Session, events []engine.Event) error {
	var errs error
	for _, e := range events {
		var f protocol.Frame
		switch e.Type {
		case engine.EvtUnitUpdated:
			f = protocol.NewFrame(protocol.KindUnitUpdate, e.Unit)
		case engine.EvtUnitAdded:
			f = protocol.NewFrame(protocol.KindUnitAdded, e.Unit)
		case engine.EvtUnitRemoved:
			f = protocol.NewFrame(protocol.KindUnitRemoved, e.UnitID)
		case engine.EvtCityUpdated:
			f = protocol.NewFrame(protocol.KindCityUpdate, e.City)
		case engine.EvtCityAdded:
			f = protocol.NewFrame(protocol.KindCityAdded, e.City)
		case engine.EvtCityRemoved:
			f = protocol.NewFrame(protocol.KindCityRemoved, e.City.ID)
		case engine.EvtTileUpdated:
			f = protocol.NewFrame(protocol.KindTileUpdate, e.Tile)
		case engine.EvtPlayerUpdated:
			errs = multierr.Append(errs, owner.Peer.Send(protocol.NewFrame(protocol.KindPlayerUpdate, e.Player)))
			continue
		default:
			h.log.Debug("unhandled event", zap.String("type", string(e.Type)))
			continue
		}
		errs = multierr.Append(errs, h.sessions.Broadcast(f))
	}
	return errs
}
