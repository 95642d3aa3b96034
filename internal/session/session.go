package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"tictacroom/internal/game"
	"tictacroom/internal/models"
)

const (
	// MaxParticipants is the number of roles in a session.
	MaxParticipants = 2
	// ChatHistory is the number of chat entries retained and broadcast.
	ChatHistory = 50
	// AnonymousName replaces a blank display name.
	AnonymousName = "Anonymous"
)

// Session is one game's full state. All fields are guarded by mu; the
// unexported transition methods assume the caller holds it.
type Session struct {
	mu sync.Mutex

	ID           string
	participants map[string]*models.Participant
	order        []string // connection ids in join order
	board        models.Board
	turn         models.Role
	chat         []models.ChatEntry
	moves        []models.MoveRecord
	phase        models.Phase
	result       models.Result

	// evicted is set once the session is removed from the store so that
	// callers that fetched it earlier observe ErrNotFound.
	evicted bool
}

// transition is the output of one accepted operation: the events to
// dispatch in order, plus the phase edges the coordinator must act on.
type transition struct {
	events   []models.Event
	paired   bool // waiting -> playing
	finished bool // playing -> finished
}

func newSession(id string) *Session {
	return &Session{
		ID:           id,
		participants: make(map[string]*models.Participant, MaxParticipants),
		turn:         models.RoleFirst,
		phase:        models.PhaseWaiting,
	}
}

// vacantRole returns the first role no participant holds.
func (s *Session) vacantRole() models.Role {
	taken := map[models.Role]bool{}
	for _, p := range s.participants {
		taken[p.Role] = true
	}
	if !taken[models.RoleFirst] {
		return models.RoleFirst
	}
	return models.RoleSecond
}

func (s *Session) admit(connID, displayName string, now time.Time) (models.Snapshot, transition, error) {
	if _, ok := s.participants[connID]; ok {
		return models.Snapshot{}, transition{}, ErrDuplicateConnection
	}
	if len(s.participants) >= MaxParticipants {
		return models.Snapshot{}, transition{}, ErrSessionFull
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = AnonymousName
	}
	p := &models.Participant{
		ConnID:      connID,
		DisplayName: name,
		Role:        s.vacantRole(),
		JoinedAt:    now,
	}
	s.participants[connID] = p
	s.order = append(s.order, connID)

	var tr transition
	if s.phase == models.PhaseWaiting && len(s.participants) == MaxParticipants {
		s.phase = models.PhasePlaying
		tr.paired = true
	}
	snap := s.snapshot(p.Role)
	tr.events = append(tr.events,
		models.Event{To: connID, Type: models.EventJoined, SessionID: s.ID, Snapshot: &snap},
		models.Event{Type: models.EventPlayers, SessionID: s.ID, Participants: s.participantList(), Turn: s.turn},
	)
	if tr.paired {
		tr.events = append(tr.events, models.Event{Type: models.EventPhase, SessionID: s.ID, Phase: models.PhasePlaying})
	}
	return snap, tr, nil
}

func (s *Session) move(connID string, cell int, now time.Time) (transition, error) {
	if s.phase != models.PhasePlaying {
		return transition{}, ErrSessionNotPlaying
	}
	p, ok := s.participants[connID]
	if !ok {
		return transition{}, ErrNotParticipant
	}
	if p.Role != s.turn {
		return transition{}, ErrNotYourTurn
	}
	board, err := game.ApplyMove(s.board, cell, p.Role)
	if err != nil {
		return transition{}, err
	}

	s.board = board
	s.moves = append(s.moves, models.MoveRecord{Role: p.Role, Cell: cell, At: now})
	s.turn = p.Role.Opponent()

	var tr transition
	if eval := game.Evaluate(s.board); eval.Terminal() {
		s.phase = models.PhaseFinished
		s.result = eval.Result()
		tr.finished = true
		tr.events = append(tr.events, models.Event{Type: models.EventGameOver, SessionID: s.ID, Result: s.result, Board: &board})
	} else {
		tr.events = append(tr.events, models.Event{Type: models.EventMove, SessionID: s.ID, Board: &board, Turn: s.turn})
	}
	return tr, nil
}

func (s *Session) postChat(connID, text string, now time.Time) (transition, error) {
	p, ok := s.participants[connID]
	if !ok {
		return transition{}, ErrNotParticipant
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return transition{}, ErrEmptyMessage
	}

	s.chat = append(s.chat, models.ChatEntry{Author: p.DisplayName, Text: text, Timestamp: now})
	if over := len(s.chat) - ChatHistory; over > 0 {
		s.chat = slices.Clone(s.chat[over:])
	}
	return transition{events: []models.Event{
		{Type: models.EventChat, SessionID: s.ID, ChatLog: s.chatLog()},
	}}, nil
}

// leave removes connID. The bool is false when connID was never admitted.
func (s *Session) leave(connID string) (transition, bool) {
	if _, ok := s.participants[connID]; !ok {
		return transition{}, false
	}
	delete(s.participants, connID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == connID })

	return transition{events: []models.Event{
		{Type: models.EventPlayers, SessionID: s.ID, Participants: s.participantList()},
	}}, true
}

func (s *Session) empty() bool {
	return len(s.participants) == 0
}

func (s *Session) participantList() []models.Participant {
	out := make([]models.Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.participants[id])
	}
	return out
}

func (s *Session) chatLog() []models.ChatEntry {
	return append([]models.ChatEntry{}, s.chat...)
}

func (s *Session) snapshot(role models.Role) models.Snapshot {
	return models.Snapshot{
		SessionID:    s.ID,
		Role:         role,
		Board:        s.board,
		Participants: s.participantList(),
		ChatLog:      s.chatLog(),
		Turn:         s.turn,
		Phase:        s.phase,
		Result:       s.result,
	}
}

func (s *Session) outcome() models.Outcome {
	players := make([]string, 0, len(s.order))
	for _, id := range s.order {
		players = append(players, s.participants[id].DisplayName)
	}
	return models.Outcome{
		Players: players,
		Moves:   slices.Clone(s.moves),
		Result:  s.result,
	}
}

// State is a read-only copy of a session, used for inspection and tests.
type State struct {
	Participants []models.Participant
	Board        models.Board
	Turn         models.Role
	ChatLog      []models.ChatEntry
	Moves        []models.MoveRecord
	Phase        models.Phase
	Result       models.Result
}

// State returns a consistent copy of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Participants: s.participantList(),
		Board:        s.board,
		Turn:         s.turn,
		ChatLog:      s.chatLog(),
		Moves:        slices.Clone(s.moves),
		Phase:        s.phase,
		Result:       s.result,
	}
}
