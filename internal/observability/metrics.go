package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"tictacroom/internal/config"
)

const meterName = "tictacroom/session"

// Metrics holds the coordinator's OpenTelemetry instruments.
// A zero-value Metrics is not usable; build one with NewMetrics or NoopMetrics.
type Metrics struct {
	sessionsCreated  metric.Int64Counter
	sessionsActive   metric.Int64UpDownCounter
	sessionsFinished metric.Int64Counter
	movesAccepted    metric.Int64Counter
	movesRejected    metric.Int64Counter
	chatMessages     metric.Int64Counter
	finalizeRetries  metric.Int64Counter
	finalizeFailures metric.Int64Counter
}

// NewMetrics registers all instruments on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.sessionsCreated, err = meter.Int64Counter("sessions.created",
		metric.WithDescription("Sessions created with a durable record")); err != nil {
		return nil, fmt.Errorf("creating sessions.created: %w", err)
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter("sessions.active",
		metric.WithDescription("Sessions currently held in memory")); err != nil {
		return nil, fmt.Errorf("creating sessions.active: %w", err)
	}
	if m.sessionsFinished, err = meter.Int64Counter("sessions.finished",
		metric.WithDescription("Sessions that reached a terminal board")); err != nil {
		return nil, fmt.Errorf("creating sessions.finished: %w", err)
	}
	if m.movesAccepted, err = meter.Int64Counter("moves.accepted"); err != nil {
		return nil, fmt.Errorf("creating moves.accepted: %w", err)
	}
	if m.movesRejected, err = meter.Int64Counter("moves.rejected"); err != nil {
		return nil, fmt.Errorf("creating moves.rejected: %w", err)
	}
	if m.chatMessages, err = meter.Int64Counter("chat.messages"); err != nil {
		return nil, fmt.Errorf("creating chat.messages: %w", err)
	}
	if m.finalizeRetries, err = meter.Int64Counter("finalize.retries",
		metric.WithDescription("Final result writes retried after a failure")); err != nil {
		return nil, fmt.Errorf("creating finalize.retries: %w", err)
	}
	if m.finalizeFailures, err = meter.Int64Counter("finalize.failures",
		metric.WithDescription("Final result writes abandoned after exhausting retries")); err != nil {
		return nil, fmt.Errorf("creating finalize.failures: %w", err)
	}
	return m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// noop instruments never fail to register
		panic(err)
	}
	return m
}

func (m *Metrics) SessionCreated(ctx context.Context) {
	m.sessionsCreated.Add(ctx, 1)
	m.sessionsActive.Add(ctx, 1)
}

func (m *Metrics) SessionEvicted(ctx context.Context) {
	m.sessionsActive.Add(ctx, -1)
}

func (m *Metrics) SessionFinished(ctx context.Context, result string) {
	m.sessionsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) MoveAccepted(ctx context.Context) {
	m.movesAccepted.Add(ctx, 1)
}

func (m *Metrics) MoveRejected(ctx context.Context, reason string) {
	m.movesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) ChatPosted(ctx context.Context) {
	m.chatMessages.Add(ctx, 1)
}

func (m *Metrics) FinalizeRetried(ctx context.Context) {
	m.finalizeRetries.Add(ctx, 1)
}

func (m *Metrics) FinalizeFailed(ctx context.Context) {
	m.finalizeFailures.Add(ctx, 1)
}

// NewMeterProvider builds the process meter provider. When metrics are disabled
// it returns a noop provider and a shutdown func that does nothing.
func NewMeterProvider(ctx context.Context, cfg config.MetricsConfig) (metric.MeterProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = RotatingFile(cfg.File, 10, 3, 28)
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("tictacroom"),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
	)
	return provider, provider.Shutdown, nil
}
