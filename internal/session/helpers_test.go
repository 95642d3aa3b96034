package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"tictacroom/internal/models"
	"tictacroom/internal/storage/memory"
)

var errBoom = errors.New("boom")

type delivery struct {
	sessionID string
	event     models.Event
}

// recordingRooms records every call made through the Rooms interface.
type recordingRooms struct {
	mu      sync.Mutex
	members map[string]map[string]bool
	sent    []delivery
	closed  []string
}

func newRecordingRooms() *recordingRooms {
	return &recordingRooms{members: map[string]map[string]bool{}}
}

func (r *recordingRooms) Join(sessionID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[sessionID] == nil {
		r.members[sessionID] = map[string]bool{}
	}
	r.members[sessionID][connID] = true
}

func (r *recordingRooms) Leave(sessionID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[sessionID], connID)
}

func (r *recordingRooms) Deliver(sessionID string, ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, delivery{sessionID: sessionID, event: ev})
}

func (r *recordingRooms) Close(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, sessionID)
	r.closed = append(r.closed, sessionID)
}

func (r *recordingRooms) ofType(typ models.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, d := range r.sent {
		if d.event.Type == typ {
			out = append(out, d.event)
		}
	}
	return out
}

func (r *recordingRooms) isClosed(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.closed {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (r *recordingRooms) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// flakyGateway wraps the memory gateway with injectable failures.
type flakyGateway struct {
	*memory.Gateway
	failCreate    bool
	finalizeFails atomic.Int32 // remaining Finalize calls to fail; negative fails forever
	finalizeCalls atomic.Int32
}

func newFlakyGateway() *flakyGateway {
	return &flakyGateway{Gateway: memory.New()}
}

func (g *flakyGateway) CreateRecord(ctx context.Context) (string, error) {
	if g.failCreate {
		return "", errBoom
	}
	return g.Gateway.CreateRecord(ctx)
}

func (g *flakyGateway) Finalize(ctx context.Context, id string, outcome models.Outcome) error {
	g.finalizeCalls.Add(1)
	if n := g.finalizeFails.Load(); n != 0 {
		if n > 0 {
			g.finalizeFails.Add(-1)
		}
		return errBoom
	}
	return g.Gateway.Finalize(ctx, id, outcome)
}

var fastRetry = RetryPolicy{
	WriteTimeout:    time.Second,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	MaxElapsed:      50 * time.Millisecond,
}

type fixture struct {
	coord   *Coordinator
	store   *Store
	gateway *flakyGateway
	rooms   *recordingRooms
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := newFlakyGateway()
	store := NewStore(gw)
	rooms := newRecordingRooms()
	coord := NewCoordinator(store, gw, rooms, fastRetry, nil, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = coord.finalizer.drain(ctx)
	})
	return &fixture{coord: coord, store: store, gateway: gw, rooms: rooms}
}
