package protocol

// Kind is the frame header: the message kind. Zero is never a valid kind so
// that an all-zero header can be told apart from a real frame.
type Kind int32

const (
	KindNone Kind = iota
	KindLobbyInit
	KindLobbyEmpireSelect
	KindLobbyStateSync
	KindLobbyKick
	KindLobbyBan
	KindLobbyStartGame
	KindTurnState
	KindTurnData
	KindPlayerUpdate
	KindTileUpdate
	KindUnitUpdate
	KindUnitAdded
	KindUnitRemoved
	KindUnitCommand
	KindCityUpdate
	KindCityAdded
	KindCityRemoved
	KindCityCommand
	KindPlayerCommand
	KindGameOver

	kindCount
)

var kindNames = [...]string{
	KindNone:              "none",
	KindLobbyInit:         "lobby-init",
	KindLobbyEmpireSelect: "lobby-empire-select",
	KindLobbyStateSync:    "lobby-state-sync",
	KindLobbyKick:         "lobby-kick",
	KindLobbyBan:          "lobby-ban",
	KindLobbyStartGame:    "lobby-start-game",
	KindTurnState:         "turn-state",
	KindTurnData:          "turn-data",
	KindPlayerUpdate:      "player-update",
	KindTileUpdate:        "tile-update",
	KindUnitUpdate:        "unit-update",
	KindUnitAdded:         "unit-added",
	KindUnitRemoved:       "unit-removed",
	KindUnitCommand:       "unit-command",
	KindCityUpdate:        "city-update",
	KindCityAdded:         "city-added",
	KindCityRemoved:       "city-removed",
	KindCityCommand:       "city-command",
	KindPlayerCommand:     "player-command",
	KindGameOver:          "game-over",
}

func (k Kind) String() string {
	if k.Valid() || k == KindNone {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) Valid() bool {
	return k > KindNone && k < kindCount
}

// Lobby reports whether the kind belongs to the pre-game phase.
func (k Kind) Lobby() bool {
	return k >= KindLobbyInit && k <= KindLobbyStartGame
}
