// Package router routes inbound connection requests to the session
// coordinator. It knows nothing about the transport.
package router

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tictacroom/internal/broadcast"
	"tictacroom/internal/models"
	"tictacroom/internal/session"
)

// Error codes sent to the requesting connection.
const (
	CodeNotFound               = "not_found"
	CodeSessionFull            = "session_full"
	CodeDuplicateConnection    = "duplicate_connection"
	CodeAlreadyBound           = "already_bound"
	CodeSessionNotPlaying      = "session_not_playing"
	CodePersistenceUnavailable = session.CodePersistenceUnavailable
	CodeBadRequest             = "bad_request"
)

var (
	// ErrAlreadyBound is returned when a connection bound to one session
	// asks to join another.
	ErrAlreadyBound = errors.New("connection already bound to another session")
	ErrBadRequest   = errors.New("bad request")
)

// Coordinator is the session surface the router drives.
type Coordinator interface {
	Create(ctx context.Context) (string, error)
	Admit(ctx context.Context, sessionID, connID, displayName string) (models.Snapshot, error)
	Move(ctx context.Context, sessionID, connID string, cell int) error
	Chat(ctx context.Context, sessionID, connID, text string) error
	Disconnect(ctx context.Context, sessionID, connID string)
}

// Router maps requests from connections onto coordinator operations.
type Router struct {
	coord  Coordinator
	hub    *broadcast.Hub
	logger *zap.Logger
}

// New creates a Router.
func New(coord Coordinator, hub *broadcast.Hub, logger *zap.Logger) *Router {
	return &Router{
		coord:  coord,
		hub:    hub,
		logger: logger.Named("router"),
	}
}

// Connect registers a freshly opened connection.
func (r *Router) Connect(connID string) *broadcast.Client {
	r.logger.Debug("connection opened", zap.String("conn_id", connID))
	return r.hub.Register(connID)
}

// Disconnect feeds the disconnect edge to the bound session and forgets the
// connection.
func (r *Router) Disconnect(ctx context.Context, connID string) {
	if sessionID, ok := r.hub.SessionOf(connID); ok {
		r.coord.Disconnect(ctx, sessionID, connID)
	}
	r.hub.Unregister(connID)
	r.logger.Debug("connection closed", zap.String("conn_id", connID))
}

// Handle routes one request. Failures are reported to the requester unless
// they are silent rejections.
func (r *Router) Handle(ctx context.Context, connID string, req models.Request) {
	err := r.handle(ctx, connID, req)
	if err == nil || session.Ignorable(err) {
		return
	}
	r.logger.Debug("request rejected",
		zap.String("conn_id", connID),
		zap.String("type", string(req.Type)),
		zap.Error(err),
	)
	r.hub.Send(connID, models.Event{
		Type:      models.EventError,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Code:      ErrorCode(err),
		Message:   err.Error(),
	})
}

func (r *Router) handle(ctx context.Context, connID string, req models.Request) error {
	switch req.Type {
	case models.RequestCreateSession:
		id, err := r.coord.Create(ctx)
		if err != nil {
			return err
		}
		r.hub.Send(connID, models.Event{Type: models.EventCreated, RequestID: req.RequestID, SessionID: id})
		return nil

	case models.RequestAdmit, models.RequestJoin:
		if req.SessionID == "" {
			return ErrBadRequest
		}
		if bound, ok := r.hub.SessionOf(connID); ok && bound != req.SessionID {
			return ErrAlreadyBound
		}
		_, err := r.coord.Admit(ctx, req.SessionID, connID, req.DisplayName)
		return err

	case models.RequestMove:
		if req.CellIndex == nil {
			return ErrBadRequest
		}
		sessionID, ok := r.boundSession(connID, req)
		if !ok {
			return nil
		}
		return r.coord.Move(ctx, sessionID, connID, *req.CellIndex)

	case models.RequestChat:
		sessionID, ok := r.boundSession(connID, req)
		if !ok {
			return nil
		}
		return r.coord.Chat(ctx, sessionID, connID, req.Text)

	default:
		return ErrBadRequest
	}
}

// boundSession resolves the session for an in-session request. Requests from
// unbound connections, or naming a session other than the binding, are dropped.
func (r *Router) boundSession(connID string, req models.Request) (string, bool) {
	sessionID, ok := r.hub.SessionOf(connID)
	if !ok {
		return "", false
	}
	if req.SessionID != "" && req.SessionID != sessionID {
		return "", false
	}
	return sessionID, true
}

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, session.ErrSessionFull):
		return CodeSessionFull
	case errors.Is(err, session.ErrDuplicateConnection):
		return CodeDuplicateConnection
	case errors.Is(err, ErrAlreadyBound):
		return CodeAlreadyBound
	case errors.Is(err, session.ErrSessionNotPlaying):
		return CodeSessionNotPlaying
	case errors.Is(err, session.ErrPersistenceUnavailable):
		return CodePersistenceUnavailable
	default:
		return CodeBadRequest
	}
}
