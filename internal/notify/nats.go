// Package notify publishes finished session results to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"tictacroom/internal/config"
	"tictacroom/internal/models"
	"tictacroom/internal/storage"
)

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials the NATS server named by cfg.
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("tictacroom"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Finished is the message published for a finalized session.
type Finished struct {
	ID         string              `json:"id"`
	Result     models.Result       `json:"winner"`
	Players    []string            `json:"players"`
	Moves      []models.MoveRecord `json:"moves"`
	FinishedAt time.Time           `json:"finishedAt"`
}

// Gateway decorates a storage.Gateway so that each successful Finalize is
// also published. Publishing is best effort and never fails the write.
type Gateway struct {
	storage.Gateway
	pub     Publisher
	subject string
	logger  *zap.Logger
	now     func() time.Time
}

// NewGateway wraps next with publishing on subject.
func NewGateway(next storage.Gateway, pub Publisher, subject string, logger *zap.Logger) *Gateway {
	return &Gateway{
		Gateway: next,
		pub:     pub,
		subject: subject,
		logger:  logger.Named("notify"),
		now:     time.Now,
	}
}

// Finalize writes the outcome and then publishes it.
func (g *Gateway) Finalize(ctx context.Context, id string, outcome models.Outcome) error {
	if err := g.Gateway.Finalize(ctx, id, outcome); err != nil {
		return err
	}

	data, err := json.Marshal(Finished{
		ID:         id,
		Result:     outcome.Result,
		Players:    outcome.Players,
		Moves:      outcome.Moves,
		FinishedAt: g.now().UTC(),
	})
	if err != nil {
		g.logger.Warn("encoding finished session failed", zap.String("session_id", id), zap.Error(err))
		return nil
	}
	if err := g.pub.Publish(g.subject, data); err != nil {
		g.logger.Warn("publishing finished session failed", zap.String("session_id", id), zap.Error(err))
	}
	return nil
}
