package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tictacroom/internal/models"
	"tictacroom/internal/storage"
	"tictacroom/internal/storage/memory"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

var outcome = models.Outcome{
	Players: []string{"Alice", "Bob"},
	Moves:   []models.MoveRecord{{Role: models.RoleFirst, Cell: 4}},
	Result:  models.ResultDraw,
}

func TestGatewayPublishesAfterFinalize(t *testing.T) {
	mem := memory.New()
	pub := &fakePublisher{}
	gw := NewGateway(mem, pub, "sessions.finished", zaptest.NewLogger(t))

	id, err := gw.CreateRecord(context.Background())
	require.NoError(t, err)
	require.NoError(t, gw.Finalize(context.Background(), id, outcome))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "sessions.finished", pub.msgs[0].subject)
	var msg Finished
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &msg))
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, models.ResultDraw, msg.Result)
	assert.Equal(t, []string{"Alice", "Bob"}, msg.Players)

	rec, ok := mem.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.PhaseFinished, rec.Status)
}

func TestGatewaySkipsPublishOnWriteFailure(t *testing.T) {
	pub := &fakePublisher{}
	gw := NewGateway(memory.New(), pub, "sessions.finished", zaptest.NewLogger(t))

	err := gw.Finalize(context.Background(), "missing", outcome)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
	assert.Empty(t, pub.msgs)
}

func TestGatewayPublishFailureIsBestEffort(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	gw := NewGateway(memory.New(), pub, "sessions.finished", zaptest.NewLogger(t))

	id, err := gw.CreateRecord(context.Background())
	require.NoError(t, err)
	assert.NoError(t, gw.Finalize(context.Background(), id, outcome))
}
