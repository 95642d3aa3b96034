// Package storage defines the persistence gateway consumed by the session core.
// Implementations live in the memory, postgres and sqlite subpackages.
package storage

import (
	"context"
	"errors"

	"tictacroom/internal/models"
)

const (
	// DefaultListLimit is used when ListRecent is called with a non-positive limit.
	DefaultListLimit = 20
	// MaxListLimit caps a single ListRecent call.
	MaxListLimit = 100
)

// ErrRecordNotFound is returned when a record id is unknown to the gateway.
var ErrRecordNotFound = errors.New("record not found")

// Gateway is the durable record of sessions.
//
// MarkPlaying must only move a record out of waiting; it never regresses a
// record that has already been finalized.
type Gateway interface {
	// CreateRecord stores a new waiting record and returns its id.
	CreateRecord(ctx context.Context) (string, error)
	// MarkPlaying flags the record as in progress.
	MarkPlaying(ctx context.Context, id string) error
	// Finalize writes the participants, move sequence and result.
	Finalize(ctx context.Context, id string, outcome models.Outcome) error
	// ListRecent returns up to limit records, most recent first.
	ListRecent(ctx context.Context, limit int) ([]models.Record, error)
}

// ClampLimit normalizes a ListRecent limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
