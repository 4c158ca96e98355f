package reconcile

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/infra/telemetry"
)

type sweepMetrics struct {
	environment string
	platform    string

	recordsScanned   metric.Int64Counter
	tagsRemoved      metric.Int64Counter
	entriesDeleted   metric.Int64Counter
	mutationFailures metric.Int64Counter
	decodeFallbacks  metric.Int64Counter
	pageFetch        metric.Float64Histogram
	mutationLatency  metric.Float64Histogram
}

func newSweepMetrics(platform string) *sweepMetrics {
	meter := otel.Meter("reconcile")
	m := &sweepMetrics{environment: telemetry.Environment(), platform: platform}

	m.recordsScanned, _ = meter.Int64Counter(telemetry.MetricRecordsScanned,
		metric.WithDescription("Products visited by the sweep"),
		metric.WithUnit("{product}"))
	m.tagsRemoved, _ = meter.Int64Counter(telemetry.MetricTagsRemoved,
		metric.WithDescription("Sentinel tags removed from products"),
		metric.WithUnit("{tag}"))
	m.entriesDeleted, _ = meter.Int64Counter(telemetry.MetricEntriesDeleted,
		metric.WithDescription("Expiration entries deleted"),
		metric.WithUnit("{entry}"))
	m.mutationFailures, _ = meter.Int64Counter(telemetry.MetricMutationFailures,
		metric.WithDescription("Record-level mutation failures"),
		metric.WithUnit("{error}"))
	m.decodeFallbacks, _ = meter.Int64Counter(telemetry.MetricDecodeFallbacks,
		metric.WithDescription("Malformed metafield values replaced by defaults"),
		metric.WithUnit("{value}"))
	m.pageFetch, _ = meter.Float64Histogram(telemetry.MetricPageFetchDuration,
		metric.WithDescription("Latency of catalog page fetches"),
		metric.WithUnit("ms"))
	m.mutationLatency, _ = meter.Float64Histogram(telemetry.MetricMutationDuration,
		metric.WithDescription("Latency of per-record mutations"),
		metric.WithUnit("ms"))
	return m
}

func resultOf(err error) string {
	if err == nil {
		return telemetry.ResultSuccess
	}
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

func (m *sweepMetrics) pageFetched(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil || m.pageFetch == nil {
		return
	}
	m.pageFetch.Record(ctx, float64(elapsed.Microseconds())/1000,
		metric.WithAttributes(telemetry.OperationResultAttributes(m.environment, m.platform, "fetch_page", resultOf(err))...))
}

func (m *sweepMetrics) mutation(ctx context.Context, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(telemetry.OperationResultAttributes(m.environment, m.platform, op, resultOf(err))...)
	if m.mutationLatency != nil {
		m.mutationLatency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
	if err != nil && m.mutationFailures != nil {
		m.mutationFailures.Add(ctx, 1, attrs)
	}
}

func (m *sweepMetrics) decodeFallback(ctx context.Context, field string) {
	if m == nil || m.decodeFallbacks == nil {
		return
	}
	m.decodeFallbacks.Add(ctx, 1, metric.WithAttributes(telemetry.DecodeAttributes(m.environment, field)...))
}

func (m *sweepMetrics) recorded(ctx context.Context, r RecordResult) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(telemetry.RecordAttributes(m.environment, r.Action.Kind().String(), string(r.Status()))...)
	if m.recordsScanned != nil {
		m.recordsScanned.Add(ctx, 1, attrs)
	}
	if r.TagRemoved && m.tagsRemoved != nil {
		m.tagsRemoved.Add(ctx, 1, attrs)
	}
	if r.EntryDeleted && m.entriesDeleted != nil {
		m.entriesDeleted.Add(ctx, 1, attrs)
	}
}
