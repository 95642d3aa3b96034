package session

import (
	"errors"

	"tictacroom/internal/game"
)

var (
	ErrNotFound               = errors.New("session not found")
	ErrSessionFull            = errors.New("session full")
	ErrDuplicateConnection    = errors.New("connection already joined this session")
	ErrSessionNotPlaying      = errors.New("session is not playing")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// Rejections below come only from stale or misbehaving clients and are
	// dropped by the router without a reply.
	ErrNotParticipant = errors.New("connection is not a participant")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrEmptyMessage   = errors.New("empty chat message")
	ErrIllegalMove    = game.ErrIllegalMove
)

// Ignorable reports whether err should be dropped silently rather than
// surfaced to the requesting connection.
func Ignorable(err error) bool {
	return errors.Is(err, ErrNotParticipant) ||
		errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrIllegalMove)
}
