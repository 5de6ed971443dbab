package protocol

import (
	"errors"
	"fmt"

	"github.com/arwic/dominion/internal/game"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnexpectedKind = errors.New("unexpected message kind")
	ErrRejected       = errors.New("join rejected")
	ErrConnectionLost = errors.New("connection lost")
)

// FrameError is a truncated or undecodable frame. The offending bytes are
// dropped; the connection survives a single occurrence.
type FrameError struct {
	Reason string
	Len    int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame error (%d bytes): %s", e.Len, e.Reason)
}

func (e *FrameError) Unwrap() error { return ErrMalformedFrame }

// ProtocolError is a well-formed frame whose kind is not valid right now.
type ProtocolError struct {
	Kind  Kind
	Phase string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s not accepted during %s", e.Kind, e.Phase)
}

func (e *ProtocolError) Unwrap() error { return ErrUnexpectedKind }

// AuthError refuses a lobby join.
type AuthError struct {
	Code game.RejectCode
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("join rejected: %s", e.Code)
}

func (e *AuthError) Unwrap() error { return ErrRejected }
