package game

type UnitCommandKind int

const (
	UnitMove UnitCommandKind = iota
	UnitSleep
	UnitWake
	UnitSkip
	UnitSettle
	UnitDisband
)

type UnitCommand struct {
	UnitID int
	Kind   UnitCommandKind
	Target Point
}

type CityCommandKind int

const (
	CityEnqueue CityCommandKind = iota
	CityClearQueue
)

type CityCommand struct {
	CityID       int
	Kind         CityCommandKind
	ProductionID int
}

type PlayerCommandKind int

const (
	PlayerSelectResearch PlayerCommandKind = iota
	PlayerAdoptPolicy
)

type PlayerCommand struct {
	Kind PlayerCommandKind
	ID   int
}

// TurnEndReason says why the server advanced the turn.
type TurnEndReason int

const (
	ReasonGameStart TurnEndReason = iota
	ReasonPlayersEnded
	ReasonTimeout
	ReasonHostForced
)

func (r TurnEndReason) String() string {
	switch r {
	case ReasonGameStart:
		return "game-start"
	case ReasonPlayersEnded:
		return "players-ended"
	case ReasonTimeout:
		return "timeout"
	case ReasonHostForced:
		return "host-forced"
	default:
		return "unknown"
	}
}

// RejectCode is sent with a refused lobby join.
type RejectCode int

const (
	RejectNone RejectCode = iota
	RejectGameStarted
	RejectBanned
	RejectBadPassword
)

func (c RejectCode) String() string {
	switch c {
	case RejectGameStarted:
		return "game already started"
	case RejectBanned:
		return "banned from this server"
	case RejectBadPassword:
		return "wrong password"
	default:
		return "none"
	}
}
