package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"tictacroom/internal/models"
)

const (
	x = models.RoleFirst
	o = models.RoleSecond
	e = models.Empty
)

func TestApplyMove(t *testing.T) {
	var board models.Board
	next, err := ApplyMove(board, 4, x)
	require.NoError(t, err)
	assert.Equal(t, x, next[4])
	assert.Equal(t, e, board[4], "input board must not change")
}

func TestApplyMove_Illegal(t *testing.T) {
	board := models.Board{x}
	for _, cell := range []int{-1, 9, 42, 0} {
		next, err := ApplyMove(board, cell, o)
		assert.ErrorIs(t, err, ErrIllegalMove, "cell %d", cell)
		assert.Equal(t, board, next)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		board models.Board
		want  Evaluation
	}{
		{"empty", models.Board{}, Evaluation{State: Ongoing}},
		{"top row", models.Board{x, x, x, o, o, e, e, e, e}, Evaluation{State: Won, Winner: x}},
		{"left column", models.Board{o, x, x, o, x, e, o, e, e}, Evaluation{State: Won, Winner: o}},
		{"anti-diagonal", models.Board{x, x, o, x, o, e, o, e, e}, Evaluation{State: Won, Winner: o}},
		{"draw", models.Board{x, o, x, x, o, o, o, x, x}, Evaluation{State: Draw}},
		{"in play", models.Board{x, o, x, e, e, e, e, e, e}, Evaluation{State: Ongoing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.board))
		})
	}
}

func TestEvaluationResult(t *testing.T) {
	assert.Equal(t, models.ResultFirstWins, Evaluation{State: Won, Winner: x}.Result())
	assert.Equal(t, models.ResultSecondWins, Evaluation{State: Won, Winner: o}.Result())
	assert.Equal(t, models.ResultDraw, Evaluation{State: Draw}.Result())
	assert.Equal(t, models.ResultNone, Evaluation{State: Ongoing}.Result())
	assert.False(t, Evaluation{State: Ongoing}.Terminal())
}

func drawBoard(t *rapid.T) models.Board {
	var b models.Board
	for i := range b {
		b[i] = rapid.SampledFrom([]models.Role{x, o, e}).Draw(t, "cell")
	}
	return b
}

func uniformTriple(b models.Board) (models.Role, bool) {
	for _, c := range winConditions {
		if b[c[0]] != e && b[c[0]] == b[c[1]] && b[c[1]] == b[c[2]] {
			return b[c[0]], true
		}
	}
	return e, false
}

// Property: Evaluate reports a winner iff some triple is uniform and non-empty,
// a draw iff there is no winner and no empty cell, and ongoing otherwise.
func TestPropertyEvaluate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := drawBoard(t)
		got := Evaluate(b)
		_, hasTriple := uniformTriple(b)
		full := b.Count(e) == 0

		switch {
		case hasTriple:
			if got.State != Won {
				t.Fatalf("board %v has a uniform triple, got state %v", b, got.State)
			}
			if b.Count(got.Winner) < 3 {
				t.Fatalf("winner %q holds fewer than 3 cells on %v", got.Winner, b)
			}
		case full:
			if got.State != Draw {
				t.Fatalf("full board %v without winner, got state %v", b, got.State)
			}
		default:
			if got.State != Ongoing {
				t.Fatalf("board %v should be ongoing, got state %v", b, got.State)
			}
		}
	})
}

// Property: ApplyMove on an empty cell changes exactly that cell.
func TestPropertyApplyMoveTouchesOneCell(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := drawBoard(t)
		cell := rapid.IntRange(-2, 10).Draw(t, "cell")
		role := rapid.SampledFrom([]models.Role{x, o}).Draw(t, "role")

		next, err := ApplyMove(b, cell, role)
		legal := cell >= 0 && cell < 9 && b[cell] == e
		if !legal {
			if err == nil || next != b {
				t.Fatalf("illegal move on cell %d accepted", cell)
			}
			return
		}
		if err != nil {
			t.Fatalf("legal move on cell %d rejected: %v", cell, err)
		}
		for i := range b {
			if i == cell {
				if next[i] != role {
					t.Fatalf("cell %d not set", i)
				}
			} else if next[i] != b[i] {
				t.Fatalf("cell %d changed unexpectedly", i)
			}
		}
	})
}
