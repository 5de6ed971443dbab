package client

import "sync"

type EventKind int

const (
	EventLobby EventKind = iota
	EventBoard
	EventTile
	EventUnits
	EventCities
	EventPlayer
	EventTurn
	EventPhase
	EventSelectedUnit
	EventSelectedCity
	EventGameOver
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventLobby:
		return "lobby"
	case EventBoard:
		return "board"
	case EventTile:
		return "tile"
	case EventUnits:
		return "units"
	case EventCities:
		return "cities"
	case EventPlayer:
		return "player"
	case EventTurn:
		return "turn"
	case EventPhase:
		return "phase"
	case EventSelectedUnit:
		return "selected-unit"
	case EventSelectedCity:
		return "selected-city"
	case EventGameOver:
		return "game-over"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event tells a consumer which part of the state changed. Consumers read the
// new state through the Synchronizer accessors.
type Event struct {
	Kind   EventKind
	Turn   int
	Phase  Phase
	Reason string
}

type broker struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

func (b *broker) subscribe(buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// publish never blocks; a subscriber whose buffer is full misses the event.
func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
