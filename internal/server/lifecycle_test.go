package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingService struct {
	name    string
	started chan struct{}
	done    chan struct{}
	once    sync.Once
	order   *[]string
	mu      *sync.Mutex
}

func newBlockingService(name string, order *[]string, mu *sync.Mutex) *blockingService {
	return &blockingService{
		name:    name,
		started: make(chan struct{}),
		done:    make(chan struct{}),
		order:   order,
		mu:      mu,
	}
}

func (s *blockingService) Start() error {
	close(s.started)
	<-s.done
	return nil
}

func (s *blockingService) Stop(context.Context) error {
	s.mu.Lock()
	*s.order = append(*s.order, s.name)
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	return nil
}

func TestLifecycleStopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)

	var (
		order []string
		mu    sync.Mutex
	)
	first := newBlockingService("first", &order, &mu)
	second := newBlockingService("second", &order, &mu)
	lc.Add("first", first)
	lc.Add("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	for _, s := range []*blockingService{first, second} {
		select {
		case <-s.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not start", s.name)
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestLifecycleReturnsServiceFailure(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	boom := errors.New("listen failed")

	stopped := false
	lc.Add("broken", &FuncService{
		StartFn: func() error { return boom },
		StopFn: func(context.Context) error {
			stopped = true
			return nil
		},
	})

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, stopped, "a failed service is still stopped")
}

func TestLifecycleJoinsStopErrors(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	stopErr := errors.New("drain timed out")
	lc.Add("svc", &FuncService{
		StartFn: func() error { return nil },
		StopFn:  func(context.Context) error { return stopErr },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, lc.Run(ctx), stopErr)
}
