package client

import (
	"fmt"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/rules"
)

// SelectEmpire asks the lobby for an empire after checking the ID against
// the local rules.
func (s *Synchronizer) SelectEmpire(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules == nil {
		return ErrNoRules
	}
	if _, err := s.rules.Empires.GetByID(id); err != nil {
		return err
	}
	return s.send(protocol.NewFrame(protocol.KindLobbyEmpireSelect, id))
}

// UpdateSettings sends new match settings. Only the host's request is
// honoured by the server.
func (s *Synchronizer) UpdateSettings(settings game.LobbySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(protocol.NewFrame(protocol.KindLobbyStateSync, settings))
}

func (s *Synchronizer) Kick(instanceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(protocol.NewFrame(protocol.KindLobbyKick, instanceID))
}

func (s *Synchronizer) Ban(instanceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(protocol.NewFrame(protocol.KindLobbyBan, instanceID))
}

func (s *Synchronizer) StartGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(protocol.NewFrame(protocol.KindLobbyStartGame))
}

// CommandUnit orders one of the local player's units.
func (s *Synchronizer) CommandUnit(cmd game.UnitCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[cmd.UnitID]
	if !ok || u.PlayerID != s.player.InstanceID {
		return fmt.Errorf("unit %d: %w", cmd.UnitID, ErrUnknownUnit)
	}
	return s.send(protocol.NewFrame(protocol.KindUnitCommand, cmd))
}

// CommandCity changes a city's production queue.
func (s *Synchronizer) CommandCity(cmd game.CityCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cities[cmd.CityID]
	if !ok || c.PlayerID != s.player.InstanceID {
		return fmt.Errorf("city %d: %w", cmd.CityID, ErrUnknownCity)
	}
	if cmd.Kind == game.CityEnqueue {
		if err := s.checkID(func(r *rules.Catalog) error {
			_, err := r.Productions.GetByID(cmd.ProductionID)
			return err
		}); err != nil {
			return err
		}
	}
	return s.send(protocol.NewFrame(protocol.KindCityCommand, cmd))
}

func (s *Synchronizer) SelectResearch(techID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkID(func(r *rules.Catalog) error {
		_, err := r.Technologies.GetByID(techID)
		return err
	}); err != nil {
		return err
	}
	return s.send(protocol.NewFrame(protocol.KindPlayerCommand, game.PlayerCommand{Kind: game.PlayerSelectResearch, ID: techID}))
}

func (s *Synchronizer) AdoptPolicy(policyID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkID(func(r *rules.Catalog) error {
		_, err := r.Policies.GetByID(policyID)
		return err
	}); err != nil {
		return err
	}
	return s.send(protocol.NewFrame(protocol.KindPlayerCommand, game.PlayerCommand{Kind: game.PlayerAdoptPolicy, ID: policyID}))
}

func (s *Synchronizer) checkID(lookup func(*rules.Catalog) error) error {
	if s.rules == nil {
		return ErrNoRules
	}
	return lookup(s.rules)
}

// SelectUnit remembers a unit by ID. A unit that later disappears simply
// stops resolving.
func (s *Synchronizer) SelectUnit(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedUnit = id
	s.events.publish(Event{Kind: EventSelectedUnit})
}

func (s *Synchronizer) SelectCity(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCity = id
	s.events.publish(Event{Kind: EventSelectedCity})
}

func (s *Synchronizer) SelectCommand(kind game.UnitCommandKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCommand = kind
}

func (s *Synchronizer) SelectedUnit() (game.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[s.selectedUnit]
	return u, ok
}

func (s *Synchronizer) SelectedCity() (game.City, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cities[s.selectedCity]
	return c, ok
}

func (s *Synchronizer) SelectedCommand() game.UnitCommandKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedCommand
}

func (s *Synchronizer) Player() game.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.player
	p.Technologies = append([]int(nil), p.Technologies...)
	p.Policies = append([]int(nil), p.Policies...)
	return p
}

func (s *Synchronizer) Lobby() game.LobbyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.lobby
	st.Players = append([]game.BasicPlayer(nil), st.Players...)
	return st
}

// Rules is nil until the server has sent its catalog.
func (s *Synchronizer) Rules() *rules.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Board returns a copy of the authoritative board, or nil before the game
// starts.
func (s *Synchronizer) Board() *game.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.board == nil {
		return nil
	}
	return s.board.Clone()
}

func (s *Synchronizer) Units() []game.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedUnits()
}

func (s *Synchronizer) Cities() []game.City {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedCities()
}

// Cache is the fog of war derived from the canonical collections.
func (s *Synchronizer) Cache() *Cache { return s.cache }

// IsVisible evaluates the current sight of the local player at p.
func (s *Synchronizer) IsVisible(p game.Point) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Visible(s.player.InstanceID, s.board, s.sortedUnits(), s.sortedCities(), p)
}

func (s *Synchronizer) Turn() (int, time.Duration, game.TurnEndReason) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turn, s.timeLimit, s.reason
}

func (s *Synchronizer) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// InGame is true from the first turn data until the match ends or the
// connection drops.
func (s *Synchronizer) InGame() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inTurn
}

func (s *Synchronizer) Result() (GameOver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.over == nil {
		return GameOver{}, false
	}
	return *s.over, true
}

// Disconnected reports whether the session is over and why.
func (s *Synchronizer) Disconnected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lostWhy, s.closed
}
