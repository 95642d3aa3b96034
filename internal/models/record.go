package models

import "time"

// Record is the durable trace of a session kept by the persistence gateway.
// It outlives the in-memory session and is the only source read by history listings.
type Record struct {
	ID        string       `json:"id"`
	Status    Phase        `json:"status"`
	Result    Result       `json:"winner,omitempty"`
	Players   []string     `json:"players"`
	Moves     []MoveRecord `json:"moves"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Outcome is the payload written when a session finishes.
type Outcome struct {
	Players []string
	Moves   []MoveRecord
	Result  Result
}
