package protocol

import (
	"encoding/gob"
	"fmt"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/rules"
)

func init() {
	gob.Register(time.Duration(0))
	gob.Register(game.Point{})
	gob.Register(game.Tile{})
	gob.Register(game.Board{})
	gob.Register(game.Unit{})
	gob.Register([]game.Unit{})
	gob.Register(game.City{})
	gob.Register([]game.City{})
	gob.Register(game.Player{})
	gob.Register(game.BasicPlayer{})
	gob.Register(game.LobbySettings{})
	gob.Register(game.LobbyState{})
	gob.Register(game.UnitCommand{})
	gob.Register(game.CityCommand{})
	gob.Register(game.PlayerCommand{})
	gob.Register(game.TurnEndReason(0))
	gob.Register(game.VictoryType(0))
	gob.Register(game.RejectCode(0))
	gob.Register(rules.Catalog{})
}

// Item returns f.Items[i] as a T, or a FrameError when it is missing or of
// another type.
func Item[T any](f Frame, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(f.Items) {
		return zero, &FrameError{Reason: fmt.Sprintf("%s: missing item %d of %d", f.Kind, i, len(f.Items))}
	}
	v, ok := f.Items[i].(T)
	if !ok {
		return zero, &FrameError{Reason: fmt.Sprintf("%s: item %d is %T, want %T", f.Kind, i, f.Items[i], zero)}
	}
	return v, nil
}
