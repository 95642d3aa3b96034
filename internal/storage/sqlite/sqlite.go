// Package sqlite provides an embedded persistence gateway on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tictacroom/internal/models"
	"tictacroom/internal/storage"
	"tictacroom/internal/storage/migrations"
)

// Open opens (and creates if missing) a SQLite database file with a busy
// timeout and WAL journaling, then applies the embedded migrations.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	if err := migrations.UpSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Gateway implements storage.Gateway on a sessions table.
type Gateway struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open, migrated database.
func New(db *sql.DB) *Gateway {
	return &Gateway{db: db, now: time.Now}
}

// CreateRecord inserts a waiting row.
func (g *Gateway) CreateRecord(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := g.now().UTC()
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO sessions (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(models.PhaseWaiting), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("inserting session record: %w", err)
	}
	return id, nil
}

// MarkPlaying flags a waiting row as playing.
func (g *Gateway) MarkPlaying(ctx context.Context, id string) error {
	_, err := g.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.PhasePlaying), g.now().UTC(), id, string(models.PhaseWaiting),
	)
	if err != nil {
		return fmt.Errorf("marking session %s playing: %w", id, err)
	}
	return nil
}

// Finalize writes the outcome of a finished session.
func (g *Gateway) Finalize(ctx context.Context, id string, outcome models.Outcome) error {
	players, err := json.Marshal(orEmpty(outcome.Players))
	if err != nil {
		return fmt.Errorf("encoding players: %w", err)
	}
	moves := outcome.Moves
	if moves == nil {
		moves = []models.MoveRecord{}
	}
	movesJSON, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("encoding moves: %w", err)
	}

	res, err := g.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, result = ?, players = ?, moves = ?, updated_at = ? WHERE id = ?`,
		string(models.PhaseFinished), string(outcome.Result), string(players), string(movesJSON), g.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finalizing session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalizing session %s: %w", id, err)
	}
	if n == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}

// ListRecent returns the newest rows first.
func (g *Gateway) ListRecent(ctx context.Context, limit int) ([]models.Record, error) {
	rows, err := g.db.QueryContext(ctx, `
        SELECT id, status, result, players, moves, created_at, updated_at
        FROM sessions
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, storage.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying session records: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, storage.ClampLimit(limit))
	for rows.Next() {
		var (
			rec                           models.Record
			status, result, players, mvs string
		)
		if err := rows.Scan(&rec.ID, &status, &result, &players, &mvs, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session record: %w", err)
		}
		rec.Status = models.Phase(status)
		rec.Result = models.Result(result)
		if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
			return nil, fmt.Errorf("decoding players of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(mvs), &rec.Moves); err != nil {
			return nil, fmt.Errorf("decoding moves of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
