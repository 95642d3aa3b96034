package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tictacroom/internal/models"
	"tictacroom/internal/observability"
	"tictacroom/internal/storage"
)

// RetryPolicy bounds durable writes and the retry of a failed final write.
type RetryPolicy struct {
	WriteTimeout    time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy matches the persistence defaults in config.
var DefaultRetryPolicy = RetryPolicy{
	WriteTimeout:    5 * time.Second,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     10 * time.Second,
	MaxElapsed:      2 * time.Minute,
}

// finalizer owns the load-bearing terminal write. A failed first attempt is
// retried in the background with exponential backoff; once the budget is
// spent the abandon callback closes the session.
type finalizer struct {
	gateway   storage.Gateway
	policy    RetryPolicy
	logger    *zap.Logger
	metrics   *observability.Metrics
	onAbandon func(sessionID string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newFinalizer(gateway storage.Gateway, policy RetryPolicy, logger *zap.Logger, metrics *observability.Metrics, onAbandon func(string)) *finalizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &finalizer{
		gateway:   gateway,
		policy:    policy,
		logger:    logger,
		metrics:   metrics,
		onAbandon: onAbandon,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// submit writes the outcome once and, on failure, queues it for retry.
// It reports whether the record was persisted synchronously.
func (f *finalizer) submit(ctx context.Context, id string, outcome models.Outcome) bool {
	err := f.write(context.WithoutCancel(ctx), id, outcome)
	if err == nil {
		return true
	}

	f.logger.Warn("final result write failed, queued for retry",
		zap.String("session_id", id),
		zap.Error(err),
	)
	f.wg.Add(1)
	go f.retry(id, outcome, err)
	return false
}

func (f *finalizer) write(ctx context.Context, id string, outcome models.Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, f.policy.WriteTimeout)
	defer cancel()
	return f.gateway.Finalize(ctx, id, outcome)
}

func (f *finalizer) retry(id string, outcome models.Outcome, firstErr error) {
	defer f.wg.Done()

	err := firstErr
	if !errors.Is(err, storage.ErrRecordNotFound) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = f.policy.InitialInterval
		b.MaxInterval = f.policy.MaxInterval
		b.MaxElapsedTime = f.policy.MaxElapsed
		b.Reset()

		op := func() error {
			err := f.write(f.ctx, id, outcome)
			if errors.Is(err, storage.ErrRecordNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, next time.Duration) {
			f.metrics.FinalizeRetried(f.ctx)
			f.logger.Warn("retrying final result write",
				zap.String("session_id", id),
				zap.Duration("next", next),
				zap.Error(err),
			)
		}
		err = backoff.RetryNotify(op, backoff.WithContext(b, f.ctx), notify)
	}

	if err == nil {
		f.logger.Info("final result persisted after retry", zap.String("session_id", id))
		return
	}
	if f.ctx.Err() != nil {
		f.logger.Error("final result write abandoned at shutdown",
			zap.String("session_id", id),
			zap.Error(err),
		)
		return
	}
	f.metrics.FinalizeFailed(f.ctx)
	f.logger.Error("final result write abandoned",
		zap.String("session_id", id),
		zap.Error(err),
	)
	f.onAbandon(id)
}

// drain waits for queued retries until ctx is done, then cancels the rest.
func (f *finalizer) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.cancel()
		return nil
	case <-ctx.Done():
		f.cancel()
		<-done
		return ctx.Err()
	}
}
