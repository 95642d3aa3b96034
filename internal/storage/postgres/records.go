package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tictacroom/internal/models"
	"tictacroom/internal/storage"
)

// RecordRepository implements storage.Gateway on the sessions table.
type RecordRepository struct {
	db *pgxpool.Pool
}

// NewRecordRepository creates a RecordRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with migrations applied.
func NewRecordRepository(db *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: db}
}

// CreateRecord inserts a waiting row and returns its id.
func (r *RecordRepository) CreateRecord(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := r.db.Exec(ctx, `INSERT INTO sessions (id, status) VALUES ($1, $2)`, id, string(models.PhaseWaiting)); err != nil {
		return "", fmt.Errorf("inserting session record: %w", err)
	}
	return id, nil
}

// MarkPlaying flags a waiting row as playing. Rows past waiting are left alone.
func (r *RecordRepository) MarkPlaying(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, string(models.PhasePlaying), string(models.PhaseWaiting),
	)
	if err != nil {
		return fmt.Errorf("marking session %s playing: %w", id, err)
	}
	return nil
}

// Finalize writes the outcome and marks the row finished.
//
// Postcondition: Returns storage.ErrRecordNotFound if no row has the id.
func (r *RecordRepository) Finalize(ctx context.Context, id string, outcome models.Outcome) error {
	players, moves, err := encodeOutcome(outcome)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions
		 SET status = $2, result = $3, players = $4, moves = $5, updated_at = NOW()
		 WHERE id = $1`,
		id, string(models.PhaseFinished), string(outcome.Result), players, moves,
	)
	if err != nil {
		return fmt.Errorf("finalizing session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}

// ListRecent returns the newest rows first.
func (r *RecordRepository) ListRecent(ctx context.Context, limit int) ([]models.Record, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, status, result, players, moves, created_at, updated_at
		 FROM sessions
		 ORDER BY created_at DESC, id
		 LIMIT $1`,
		storage.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying session records: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, storage.ClampLimit(limit))
	for rows.Next() {
		var (
			rec            models.Record
			status, result string
			players, moves []byte
		)
		if err := rows.Scan(&rec.ID, &status, &result, &players, &moves, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session record: %w", err)
		}
		rec.Status = models.Phase(status)
		rec.Result = models.Result(result)
		if err := decodeOutcome(players, moves, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func encodeOutcome(outcome models.Outcome) ([]byte, []byte, error) {
	players := outcome.Players
	if players == nil {
		players = []string{}
	}
	moves := outcome.Moves
	if moves == nil {
		moves = []models.MoveRecord{}
	}
	p, err := json.Marshal(players)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding players: %w", err)
	}
	m, err := json.Marshal(moves)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding moves: %w", err)
	}
	return p, m, nil
}

func decodeOutcome(players, moves []byte, rec *models.Record) error {
	if err := json.Unmarshal(players, &rec.Players); err != nil {
		return fmt.Errorf("decoding players of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(moves, &rec.Moves); err != nil {
		return fmt.Errorf("decoding moves of %s: %w", rec.ID, err)
	}
	return nil
}
