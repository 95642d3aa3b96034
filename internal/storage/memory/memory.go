// Package memory is an in-memory implementation of storage.Gateway.
// State is lost when the process restarts; used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tictacroom/internal/models"
	"tictacroom/internal/storage"
)

// Gateway keeps records in a map guarded by an RWMutex.
type Gateway struct {
	mu      sync.RWMutex
	records map[string]*models.Record
	now     func() time.Time
}

// New constructs an empty Gateway.
func New() *Gateway {
	return &Gateway{
		records: make(map[string]*models.Record),
		now:     time.Now,
	}
}

// CreateRecord adds a waiting record.
func (g *Gateway) CreateRecord(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	id := uuid.NewString()
	g.records[id] = &models.Record{
		ID:        id,
		Status:    models.PhaseWaiting,
		Players:   []string{},
		Moves:     []models.MoveRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

// MarkPlaying moves a waiting record to playing.
func (g *Gateway) MarkPlaying(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	if rec.Status == models.PhaseWaiting {
		rec.Status = models.PhasePlaying
		rec.UpdatedAt = g.now().UTC()
	}
	return nil
}

// Finalize marks the record finished with the given outcome.
func (g *Gateway) Finalize(ctx context.Context, id string, outcome models.Outcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	rec.Status = models.PhaseFinished
	rec.Result = outcome.Result
	rec.Players = append([]string(nil), outcome.Players...)
	rec.Moves = append([]models.MoveRecord(nil), outcome.Moves...)
	rec.UpdatedAt = g.now().UTC()
	return nil
}

// ListRecent returns copies of the newest records.
func (g *Gateway) ListRecent(ctx context.Context, limit int) ([]models.Record, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]models.Record, 0, len(g.records))
	for _, rec := range g.records {
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := storage.ClampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Get returns a copy of one record.
func (g *Gateway) Get(id string) (models.Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[id]
	if !ok {
		return models.Record{}, false
	}
	return *rec, true
}
