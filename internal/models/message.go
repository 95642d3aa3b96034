package models

// RequestType identifies an inbound message from a connection.
type RequestType string

const (
	RequestCreateSession RequestType = "createSession"
	RequestAdmit         RequestType = "admit"
	RequestJoin          RequestType = "join"
	RequestMove          RequestType = "move"
	RequestChat          RequestType = "chat"
)

// Request is the inbound envelope read from a connection.
// CellIndex is a pointer so a missing index can be told apart from cell 0.
type Request struct {
	Type        RequestType `json:"type"`
	RequestID   string      `json:"requestId,omitempty"`
	SessionID   string      `json:"sessionId,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	CellIndex   *int        `json:"cellIndex,omitempty"`
	Text        string      `json:"text,omitempty"`
}

// EventType identifies an outbound message.
type EventType string

const (
	EventCreated  EventType = "created"
	EventJoined   EventType = "joined"
	EventPlayers  EventType = "players"
	EventPhase    EventType = "phase"
	EventMove     EventType = "move"
	EventGameOver EventType = "gameOver"
	EventChat     EventType = "chat"
	EventError    EventType = "error"
)

// Event is an outbound message. To targets a single connection; when empty the
// event is broadcast to every member of the session's room.
type Event struct {
	To string `json:"-"`

	Type         EventType     `json:"type"`
	RequestID    string        `json:"requestId,omitempty"`
	SessionID    string        `json:"sessionId,omitempty"`
	Snapshot     *Snapshot     `json:"snapshot,omitempty"`
	Participants []Participant `json:"players,omitempty"`
	Board        *Board        `json:"board,omitempty"`
	Turn         Role          `json:"currentPlayer,omitempty"`
	Phase        Phase         `json:"status,omitempty"`
	Result       Result        `json:"winner,omitempty"`
	ChatLog      []ChatEntry   `json:"chat,omitempty"`
	Code         string        `json:"code,omitempty"`
	Message      string        `json:"message,omitempty"`
}
