package game

type WorldSize int

const (
	WorldSizeDuel WorldSize = iota
	WorldSizeSmall
	WorldSizeStandard
	WorldSizeLarge
)

func (s WorldSize) String() string {
	switch s {
	case WorldSizeDuel:
		return "duel"
	case WorldSizeSmall:
		return "small"
	case WorldSizeStandard:
		return "standard"
	case WorldSizeLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Dimensions returns the board width and height for the size.
func (s WorldSize) Dimensions() (int, int) {
	switch s {
	case WorldSizeDuel:
		return 24, 16
	case WorldSizeSmall:
		return 32, 20
	case WorldSizeLarge:
		return 64, 40
	default:
		return 48, 30
	}
}

type WorldType int

const (
	WorldTypeContinents WorldType = iota
	WorldTypePangaea
	WorldTypeArchipelago
)

func (t WorldType) String() string {
	switch t {
	case WorldTypeContinents:
		return "continents"
	case WorldTypePangaea:
		return "pangaea"
	case WorldTypeArchipelago:
		return "archipelago"
	default:
		return "unknown"
	}
}

type GameSpeed int

const (
	GameSpeedQuick GameSpeed = iota
	GameSpeedStandard
	GameSpeedEpic
)

func (g GameSpeed) String() string {
	switch g {
	case GameSpeedQuick:
		return "quick"
	case GameSpeedStandard:
		return "standard"
	case GameSpeedEpic:
		return "epic"
	default:
		return "unknown"
	}
}

type VictoryType int

const (
	VictoryDomination VictoryType = iota
	VictoryScience
	VictoryCulture
	VictoryDiplomatic

	VictoryTypeCount
)

func (v VictoryType) String() string {
	switch v {
	case VictoryDomination:
		return "domination"
	case VictoryScience:
		return "science"
	case VictoryCulture:
		return "culture"
	case VictoryDiplomatic:
		return "diplomatic"
	default:
		return "unknown"
	}
}

type GameOption int

const (
	OptionNoBarbarians GameOption = iota
	OptionQuickCombat
	OptionRandomPersonalities

	GameOptionCount
)

// LobbySettings is the match configuration the host edits before start.
type LobbySettings struct {
	WorldSize    WorldSize
	WorldType    WorldType
	GameSpeed    GameSpeed
	VictoryTypes []bool
	OtherOptions []bool
}

func DefaultLobbySettings() LobbySettings {
	victories := make([]bool, VictoryTypeCount)
	for i := range victories {
		victories[i] = true
	}
	return LobbySettings{
		WorldSize:    WorldSizeStandard,
		WorldType:    WorldTypeContinents,
		GameSpeed:    GameSpeedStandard,
		VictoryTypes: victories,
		OtherOptions: make([]bool, GameOptionCount),
	}
}

// VictoryEnabled treats a missing entry as disabled.
func (s LobbySettings) VictoryEnabled(v VictoryType) bool {
	return int(v) < len(s.VictoryTypes) && s.VictoryTypes[v]
}

// LobbyState is rebuilt from live sessions before every broadcast.
type LobbyState struct {
	Players []BasicPlayer
	LobbySettings
}
