package turn

import (
	"errors"
	"time"

	"github.com/arwic/dominion/internal/game"
	"github.com/arwic/dominion/internal/protocol"
	"github.com/arwic/dominion/internal/session"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrMatchOver = errors.New("match is over")
var ErrUnknownSession = errors.New("unknown session")

// Simulation is the world the orchestrator steps forward.
type Simulation interface {
	AdvanceTurn() []game.Tile
	Snapshot(playerID int) (game.Player, []game.City, []game.Unit)
	HasHoldings(playerID int) bool
}

// Result describes how a match ended.
type Result struct {
	WinnerID   int
	WinnerName string
	Victory    game.VictoryType
	Turns      int
}

type Options struct {
	// TimeLimit bounds each turn. Zero disables the timer.
	TimeLimit time.Duration
	// OnTimeout runs on the timer goroutine with the turn that expired. The
	// owner is expected to hand it back to Timeout on its own goroutine.
	OnTimeout  func(turn int)
	OnGameOver func(Result)
	Settings   game.LobbySettings
	Logger     *zap.Logger
}

// Orchestrator is the authoritative turn state machine. It is not safe for
// concurrent use; the match goroutine owns it. Session flags live in the
// registry so they can be read consistently by diagnostics.
type Orchestrator struct {
	sessions     *session.Registry
	sim          Simulation
	opts         Options
	log          *zap.Logger
	timer        Timer
	turn         int
	startPlayers int
	over         bool
	result       Result
}

func New(sessions *session.Registry, sim Simulation, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		sessions: sessions,
		sim:      sim,
		opts:     opts,
		log:      log.Named("turn"),
	}
}

// Begin sends turn 0 to every session and starts the clock.
func (o *Orchestrator) Begin() error {
	o.turn = 0
	o.startPlayers = o.sessions.Len()
	o.sessions.SetAllEnded(false)
	err := o.sendTurnData(game.ReasonGameStart)
	o.arm()
	o.log.Info("match started", zap.Int("players", o.startPlayers))
	return err
}

// SetEnded records a session's turn-state flag. When the flag transitions to
// true and every current session has ended, the turn ends and ended is true.
func (o *Orchestrator) SetEnded(peerID uint64, flag bool) (ended bool, err error) {
	if o.over {
		return false, ErrMatchOver
	}
	changed, ok := o.sessions.SetEnded(peerID, flag)
	if !ok {
		return false, ErrUnknownSession
	}
	if !changed || !flag || !o.sessions.AllEnded() {
		return false, nil
	}
	return true, o.EndTurn(game.ReasonPlayersEnded)
}

// EndTurn steps the simulation and resends the full state to every session.
func (o *Orchestrator) EndTurn(reason game.TurnEndReason) error {
	if o.over {
		return ErrMatchOver
	}
	o.timer.Stop()

	changed := o.sim.AdvanceTurn()
	o.turn++
	o.sessions.SetAllEnded(false)
	o.log.Info("turn ended", zap.Int("turn", o.turn), zap.Stringer("reason", reason))

	var errs error
	for _, t := range changed {
		errs = multierr.Append(errs, o.sessions.Broadcast(protocol.NewFrame(protocol.KindTileUpdate, t)))
	}
	errs = multierr.Append(errs, o.sendTurnData(reason))

	if o.checkVictory() {
		return errs
	}
	o.arm()
	return errs
}

// Timeout handles an expired timer. Fires for a turn that has already ended
// are ignored and reported as false.
func (o *Orchestrator) Timeout(turn int) (bool, error) {
	if o.over || turn != o.turn {
		return false, nil
	}
	o.sessions.SetAllEnded(true)
	return true, o.EndTurn(game.ReasonTimeout)
}

// SessionLeft re-evaluates the match after a session was removed from the
// registry: the leaver may have been the last one holding up the turn, or
// the last rival.
func (o *Orchestrator) SessionLeft() error {
	if o.over {
		return nil
	}
	if o.checkVictory() {
		return nil
	}
	if o.sessions.AllEnded() {
		return o.EndTurn(game.ReasonPlayersEnded)
	}
	return nil
}

func (o *Orchestrator) Turn() int { return o.turn }

func (o *Orchestrator) TimeLimit() time.Duration { return o.opts.TimeLimit }

func (o *Orchestrator) Over() bool { return o.over }

func (o *Orchestrator) Result() (Result, bool) { return o.result, o.over }

func (o *Orchestrator) Stop() { o.timer.Stop() }

func (o *Orchestrator) arm() {
	if o.opts.OnTimeout == nil {
		return
	}
	turn := o.turn
	o.timer.Arm(o.opts.TimeLimit, func() { o.opts.OnTimeout(turn) })
}

// sendTurnData sends each session its own player and the full city and unit
// collections. There is no diffing between turns.
func (o *Orchestrator) sendTurnData(reason game.TurnEndReason) error {
	var errs error
	for _, s := range o.sessions.Snapshot() {
		player, cities, units := o.sim.Snapshot(s.InstanceID)
		f := protocol.NewFrame(protocol.KindTurnData, o.turn, o.opts.TimeLimit, reason, player, cities, units)
		errs = multierr.Append(errs, s.Peer.Send(f))
	}
	return errs
}

func (o *Orchestrator) checkVictory() bool {
	for v := game.VictoryType(0); v < game.VictoryTypeCount; v++ {
		if !o.opts.Settings.VictoryEnabled(v) {
			continue
		}
		switch v {
		case game.VictoryDomination:
			if winner, ok := o.domination(); ok {
				o.finish(winner, v)
				return true
			}
		default:
			// science, culture and diplomatic victories have no conditions yet
		}
	}
	return false
}

// domination is won by the only live session still holding a city or unit.
// Solo matches never end this way.
func (o *Orchestrator) domination() (*session.Session, bool) {
	if o.startPlayers < 2 {
		return nil, false
	}
	var holder *session.Session
	for _, s := range o.sessions.Snapshot() {
		if !o.sim.HasHoldings(s.InstanceID) {
			continue
		}
		if holder != nil {
			return nil, false
		}
		holder = s
	}
	return holder, holder != nil
}

func (o *Orchestrator) finish(winner *session.Session, v game.VictoryType) {
	o.over = true
	o.timer.Stop()
	o.result = Result{WinnerID: winner.InstanceID, WinnerName: winner.Name, Victory: v, Turns: o.turn}
	o.log.Info("match over", zap.Int("winner", winner.InstanceID), zap.Stringer("victory", v), zap.Int("turn", o.turn))

	if err := o.sessions.Broadcast(protocol.NewFrame(protocol.KindGameOver, winner.InstanceID, v)); err != nil {
		o.log.Warn("game over broadcast incomplete", zap.Error(err))
	}
	if o.opts.OnGameOver != nil {
		o.opts.OnGameOver(o.result)
	}
}
