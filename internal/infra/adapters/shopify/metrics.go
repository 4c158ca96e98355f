package shopify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/infra/telemetry"
)

type clientMetrics struct {
	environment string

	requests  metric.Int64Counter
	duration  metric.Float64Histogram
	throttles metric.Int64Counter
}

func newClientMetrics() *clientMetrics {
	meter := otel.Meter("shopify")
	m := &clientMetrics{environment: telemetry.Environment()}
	m.requests, _ = meter.Int64Counter(telemetry.MetricRemoteRequests,
		metric.WithDescription("Admin API requests by operation and result"),
		metric.WithUnit("{request}"))
	m.duration, _ = meter.Float64Histogram(telemetry.MetricRemoteDuration,
		metric.WithDescription("Admin API request latency including throttle retries"),
		metric.WithUnit("ms"))
	m.throttles, _ = meter.Int64Counter(telemetry.MetricThrottleRetries,
		metric.WithDescription("Throttled Admin API attempts that were retried"),
		metric.WithUnit("{retry}"))
	return m
}

func (m *clientMetrics) request(ctx context.Context, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := telemetry.ResultSuccess
	if err != nil {
		result = string(errs.CodeOf(err))
	}
	attrs := metric.WithAttributes(telemetry.OperationResultAttributes(m.environment, Platform, op, result)...)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

func (m *clientMetrics) throttled(ctx context.Context, op string) {
	if m == nil || m.throttles == nil {
		return
	}
	m.throttles.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(m.environment),
		telemetry.AttrPlatform.String(Platform),
		telemetry.AttrOperation.String(op)))
}
