package engine

import "github.com/arwic/dominion/internal/game"

type TurnStep struct {
	Name string
	Run  func(w *World) []game.Tile
}

// TurnOrder is the fixed sequence AdvanceTurn runs. Cities produce before
// players bank their yields, and units refresh last so paths continue on the
// updated board.
var TurnOrder = []TurnStep{
	{Name: "cities", Run: (*World).advanceCities},
	{Name: "players", Run: (*World).advancePlayers},
	{Name: "units", Run: (*World).advanceUnits},
}
