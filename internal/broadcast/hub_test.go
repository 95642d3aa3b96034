package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tictacroom/internal/models"
)

func drain(c *Client) []models.Event {
	var out []models.Event
	for {
		select {
		case ev, ok := <-c.Outbox():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHubDeliverBroadcastsToRoom(t *testing.T) {
	h := NewHub(4, zaptest.NewLogger(t))
	a, b, other := h.Register("a"), h.Register("b"), h.Register("other")
	h.Join("s1", "a")
	h.Join("s1", "b")
	h.Join("s2", "other")

	h.Deliver("s1", models.Event{Type: models.EventChat})

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(other))
}

func TestHubDeliverDirect(t *testing.T) {
	h := NewHub(4, zaptest.NewLogger(t))
	a, b := h.Register("a"), h.Register("b")
	h.Join("s1", "a")
	h.Join("s1", "b")

	h.Deliver("s1", models.Event{To: "b", Type: models.EventJoined})

	assert.Empty(t, drain(a))
	got := drain(b)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventJoined, got[0].Type)
}

func TestHubBindings(t *testing.T) {
	h := NewHub(4, zaptest.NewLogger(t))
	h.Register("a")

	_, ok := h.SessionOf("a")
	assert.False(t, ok)

	h.Join("s1", "a")
	id, ok := h.SessionOf("a")
	require.True(t, ok)
	assert.Equal(t, "s1", id)

	h.Leave("s1", "a")
	_, ok = h.SessionOf("a")
	assert.False(t, ok)
	assert.Empty(t, h.Members("s1"))
}

func TestHubCloseUnbindsMembers(t *testing.T) {
	h := NewHub(4, zaptest.NewLogger(t))
	a := h.Register("a")
	h.Join("s1", "a")

	h.Close("s1")

	_, ok := h.SessionOf("a")
	assert.False(t, ok)
	h.Deliver("s1", models.Event{Type: models.EventChat})
	assert.Empty(t, drain(a))
	assert.True(t, h.Send("a", models.Event{Type: models.EventCreated}), "connection stays registered")
}

func TestHubSlowClientDrops(t *testing.T) {
	h := NewHub(2, zaptest.NewLogger(t))
	h.Register("a")

	assert.True(t, h.Send("a", models.Event{Type: models.EventChat}))
	assert.True(t, h.Send("a", models.Event{Type: models.EventChat}))
	assert.False(t, h.Send("a", models.Event{Type: models.EventChat}))
	assert.False(t, h.Send("missing", models.Event{Type: models.EventChat}))
}

func TestHubUnregisterClosesOutbox(t *testing.T) {
	h := NewHub(4, zaptest.NewLogger(t))
	a := h.Register("a")
	h.Join("s1", "a")

	h.Unregister("a")
	h.Unregister("a")

	_, open := <-a.Outbox()
	assert.False(t, open)
	assert.Empty(t, h.Members("s1"))
	_, ok := h.SessionOf("a")
	assert.False(t, ok)
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub(4, zaptest.NewLogger(t))
	a, b := h.Register("a"), h.Register("b")

	h.CloseAll()

	assert.Equal(t, 0, h.Len())
	_, open := <-a.Outbox()
	assert.False(t, open)
	_, open = <-b.Outbox()
	assert.False(t, open)
}
