package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskdeck/internal/logging"
)

// clientMetrics holds request instruments. A nil instrument is skipped.
type clientMetrics struct {
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
}

func newClientMetrics(meter metric.Meter, logger *logging.Logger) *clientMetrics {
	m := &clientMetrics{}
	ctx := context.Background()
	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"taskdeck.client.requests_total",
		metric.WithDescription("API requests sent, labeled by operation, result (ok, error, transport) and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = meter.Float64Histogram(
		"taskdeck.client.request_duration_seconds",
		metric.WithDescription("API request duration in seconds, labeled by operation and result."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"taskdeck.client.active_requests",
		metric.WithDescription("API requests currently in flight."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}
	return m
}

// start marks a request in flight and returns the function that records
// its outcome.
func (m *clientMetrics) start(ctx context.Context, op string) func(result string, status int, d time.Duration) {
	opAttr := attribute.String("op", op)
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, metric.WithAttributes(opAttr))
	}
	return func(result string, status int, d time.Duration) {
		if m.activeRequests != nil {
			m.activeRequests.Add(ctx, -1, metric.WithAttributes(opAttr))
		}
		attrs := metric.WithAttributes(opAttr, attribute.String("result", result), attribute.Int("status", status))
		if m.requestsTotal != nil {
			m.requestsTotal.Add(ctx, 1, attrs)
		}
		if m.requestDur != nil {
			m.requestDur.Record(ctx, d.Seconds(), metric.WithAttributes(opAttr, attribute.String("result", result)))
		}
	}
}
