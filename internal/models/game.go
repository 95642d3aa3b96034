package models

import "time"

// Role represents a participant's mark on the board.
// The first participant to join always plays X and moves first.
type Role string

const (
	RoleFirst  Role = "X"
	RoleSecond Role = "O"
	Empty      Role = ""
)

// Opponent returns the role that alternates with r.
func (r Role) Opponent() Role {
	switch r {
	case RoleFirst:
		return RoleSecond
	case RoleSecond:
		return RoleFirst
	}
	return Empty
}

// Board represents the 3x3 game board, indexed row-major from the top left.
type Board [9]Role

// Count returns how many cells hold the given role.
func (b Board) Count(r Role) int {
	n := 0
	for _, cell := range b {
		if cell == r {
			n++
		}
	}
	return n
}

// Phase is the session-level macro state.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Result is the outcome of a finished session.
type Result string

const (
	ResultNone       Result = ""
	ResultFirstWins  Result = "X"
	ResultSecondWins Result = "O"
	ResultDraw       Result = "draw"
)

// WinnerResult maps a winning role to its result.
func WinnerResult(r Role) Result {
	switch r {
	case RoleFirst:
		return ResultFirstWins
	case RoleSecond:
		return ResultSecondWins
	}
	return ResultNone
}

// Participant is a connection bound to a role within a session.
type Participant struct {
	ConnID      string    `json:"-"`
	DisplayName string    `json:"name"`
	Role        Role      `json:"symbol"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// ChatEntry is one line of a session's chat log.
type ChatEntry struct {
	Author    string    `json:"player"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MoveRecord is one accepted move in play order.
type MoveRecord struct {
	Role Role      `json:"role"`
	Cell int       `json:"cell"`
	At   time.Time `json:"at"`
}

// Snapshot is the full state handed to a joining connection.
type Snapshot struct {
	SessionID    string        `json:"sessionId"`
	Role         Role          `json:"symbol"`
	Board        Board         `json:"board"`
	Participants []Participant `json:"players"`
	ChatLog      []ChatEntry   `json:"chat"`
	Turn         Role          `json:"currentPlayer"`
	Phase        Phase         `json:"status"`
	Result       Result        `json:"winner,omitempty"`
}
