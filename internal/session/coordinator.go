package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tictacroom/internal/models"
	"tictacroom/internal/observability"
	"tictacroom/internal/storage"
)

// Error codes broadcast when the server closes a session on its own.
const (
	CodePersistenceUnavailable = "persistence_unavailable"
	CodeShuttingDown           = "shutting_down"
)

// Rooms is the broadcast surface the coordinator dispatches through.
// Implemented by broadcast.Hub.
type Rooms interface {
	Join(sessionID, connID string)
	Leave(sessionID, connID string)
	Deliver(sessionID string, ev models.Event)
	Close(sessionID string)
}

// Coordinator runs every session operation under the session's lock and
// dispatches the resulting events before releasing it.
type Coordinator struct {
	store     *Store
	gateway   storage.Gateway
	rooms     Rooms
	finalizer *finalizer
	policy    RetryPolicy
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator wires a coordinator. A nil metrics records nothing.
func NewCoordinator(store *Store, gateway storage.Gateway, rooms Rooms, policy RetryPolicy, metrics *observability.Metrics, logger *zap.Logger) *Coordinator {
	if metrics == nil {
		metrics = observability.NoopMetrics()
	}
	c := &Coordinator{
		store:   store,
		gateway: gateway,
		rooms:   rooms,
		policy:  policy,
		metrics: metrics,
		logger:  logger.Named("session"),
		now:     time.Now,
	}
	c.finalizer = newFinalizer(gateway, policy, c.logger, metrics, func(id string) {
		c.closeSession(id, CodePersistenceUnavailable, "the final result could not be saved")
	})
	return c
}

// Create registers a new empty session and returns its id.
func (c *Coordinator) Create(ctx context.Context) (string, error) {
	sess, err := c.store.Create(ctx)
	if err != nil {
		c.logger.Error("session create failed", zap.Error(err))
		return "", err
	}
	c.metrics.SessionCreated(ctx)
	c.logger.Info("session created", zap.String("session_id", sess.ID))
	return sess.ID, nil
}

// Admit adds connID to the session as its next participant and returns the
// joiner's snapshot. The connection joins the room before any event is sent.
func (c *Coordinator) Admit(ctx context.Context, sessionID, connID, displayName string) (models.Snapshot, error) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return models.Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return models.Snapshot{}, ErrNotFound
	}

	snap, tr, err := sess.admit(connID, displayName, c.now())
	if err != nil {
		return models.Snapshot{}, err
	}
	c.rooms.Join(sessionID, connID)
	if tr.paired {
		go c.markPlaying(sessionID)
	}
	c.dispatch(sessionID, tr.events)

	c.logger.Info("participant admitted",
		zap.String("session_id", sessionID),
		zap.String("conn_id", connID),
		zap.String("role", string(snap.Role)),
	)
	return snap, nil
}

func (c *Coordinator) markPlaying(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.policy.WriteTimeout)
	defer cancel()
	if err := c.gateway.MarkPlaying(ctx, sessionID); err != nil {
		c.logger.Warn("mark playing failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Move places the caller's mark on cell. A terminal move submits the final
// write before the gameOver event is dispatched.
func (c *Coordinator) Move(ctx context.Context, sessionID, connID string, cell int) error {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return ErrNotFound
	}

	tr, err := sess.move(connID, cell, c.now())
	if err != nil {
		c.metrics.MoveRejected(ctx, rejectReason(err))
		return err
	}
	c.metrics.MoveAccepted(ctx)

	if tr.finished {
		c.finalizer.submit(ctx, sessionID, sess.outcome())
		c.metrics.SessionFinished(ctx, string(sess.result))
		c.logger.Info("session finished",
			zap.String("session_id", sessionID),
			zap.String("result", string(sess.result)),
		)
	}
	c.dispatch(sessionID, tr.events)
	return nil
}

// Chat appends text to the session's chat log and broadcasts the log.
func (c *Coordinator) Chat(ctx context.Context, sessionID, connID, text string) error {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return ErrNotFound
	}

	tr, err := sess.postChat(connID, text, c.now())
	if err != nil {
		return err
	}
	c.metrics.ChatPosted(ctx)
	c.dispatch(sessionID, tr.events)
	return nil
}

// Disconnect removes connID from the session and evicts the session once it
// is empty. Unknown sessions and connections are ignored.
func (c *Coordinator) Disconnect(ctx context.Context, sessionID, connID string) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return
	}

	tr, ok := sess.leave(connID)
	if !ok {
		return
	}
	c.rooms.Leave(sessionID, connID)
	c.dispatch(sessionID, tr.events)
	c.logger.Info("participant left",
		zap.String("session_id", sessionID),
		zap.String("conn_id", connID),
	)

	if sess.empty() {
		c.evict(ctx, sess)
	}
}

// Shutdown notifies every live room and evicts all sessions, then waits for
// queued final writes until ctx is done.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	for _, sess := range c.store.All() {
		c.closeSession(sess.ID, CodeShuttingDown, "the server is shutting down")
	}
	return c.finalizer.drain(ctx)
}

// closeSession broadcasts an error to the room, unbinds its members and
// evicts the session.
func (c *Coordinator) closeSession(sessionID, code, message string) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return
	}

	c.rooms.Deliver(sessionID, models.Event{
		Type:      models.EventError,
		SessionID: sessionID,
		Code:      code,
		Message:   message,
	})
	c.evict(context.Background(), sess)
	c.logger.Warn("session closed", zap.String("session_id", sessionID), zap.String("code", code))
}

// evict must be called with sess.mu held.
func (c *Coordinator) evict(ctx context.Context, sess *Session) {
	sess.evicted = true
	c.store.Remove(sess.ID)
	c.rooms.Close(sess.ID)
	c.metrics.SessionEvicted(ctx)
	c.logger.Info("session evicted", zap.String("session_id", sess.ID))
}

func (c *Coordinator) dispatch(sessionID string, events []models.Event) {
	for _, ev := range events {
		c.rooms.Deliver(sessionID, ev)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotPlaying):
		return "not_playing"
	case errors.Is(err, ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrIllegalMove):
		return "illegal_move"
	default:
		return "other"
	}
}
