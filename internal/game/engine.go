package game

import (
	"errors"

	"tictacroom/internal/models"
)

// ErrIllegalMove is returned for a cell outside the board or one already taken.
var ErrIllegalMove = errors.New("illegal move")

// winConditions defines all possible winning combinations
var winConditions = [][3]int{
	{0, 1, 2}, // top row
	{3, 4, 5}, // middle row
	{6, 7, 8}, // bottom row
	{0, 3, 6}, // left column
	{1, 4, 7}, // middle column
	{2, 5, 8}, // right column
	{0, 4, 8}, // diagonal
	{2, 4, 6}, // anti-diagonal
}

// State is the terminal classification of a board.
type State int

const (
	Ongoing State = iota
	Won
	Draw
)

// Evaluation is the result of Evaluate. Winner is set only when State is Won.
type Evaluation struct {
	State  State
	Winner models.Role
}

// Terminal reports whether the board ends the game.
func (e Evaluation) Terminal() bool { return e.State != Ongoing }

// Result converts the evaluation to a session result.
func (e Evaluation) Result() models.Result {
	switch e.State {
	case Won:
		return models.WinnerResult(e.Winner)
	case Draw:
		return models.ResultDraw
	}
	return models.ResultNone
}

// ApplyMove places role on cell and returns the new board. The input board is not modified.
func ApplyMove(board models.Board, cell int, role models.Role) (models.Board, error) {
	if cell < 0 || cell >= len(board) {
		return board, ErrIllegalMove
	}
	if board[cell] != models.Empty {
		return board, ErrIllegalMove
	}
	board[cell] = role
	return board, nil
}

// Evaluate classifies the board as won, drawn or still in play.
func Evaluate(board models.Board) Evaluation {
	if winner := checkWinner(board); winner != models.Empty {
		return Evaluation{State: Won, Winner: winner}
	}
	if isBoardFull(board) {
		return Evaluation{State: Draw}
	}
	return Evaluation{State: Ongoing}
}

// checkWinner checks if there's a winner
func checkWinner(board models.Board) models.Role {
	for _, condition := range winConditions {
		a, b, c := condition[0], condition[1], condition[2]
		if board[a] != models.Empty && board[a] == board[b] && board[b] == board[c] {
			return board[a]
		}
	}
	return models.Empty
}

// isBoardFull checks if the board is full
func isBoardFull(board models.Board) bool {
	for _, cell := range board {
		if cell == models.Empty {
			return false
		}
	}
	return true
}
