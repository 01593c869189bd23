package worker

import (
	"context"
	"errors"
	"time"

	"mediaenrich/internal/application/common/slogger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Metric names.
const (
	JobsClaimedCounterName   = "enrichment_jobs_claimed_total"
	JobOutcomesCounterName   = "enrichment_job_outcomes_total"
	JobDurationHistogramName = "enrichment_job_duration_seconds"
	LoopErrorsCounterName    = "enrichment_loop_errors_total"
)

// Attribute keys.
const (
	AttrClientID  = "client_id"
	AttrOutcome   = "outcome"
	AttrMediaType = "media_type"
)

// Outcome attribute values.
const (
	OutcomeCompleted      = "completed"
	OutcomeFailed         = "failed"
	OutcomeRetryScheduled = "retry_scheduled"
)

// Metrics records worker activity with OpenTelemetry instruments.
type Metrics struct {
	claimed    metric.Int64Counter
	outcomes   metric.Int64Counter
	loopErrors metric.Int64Counter
	duration   metric.Float64Histogram
	clientAttr attribute.KeyValue
}

// NewMeterProvider builds an SDK meter provider reading through reader.
func NewMeterProvider(serviceName, serviceVersion string, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

// NewMetrics creates the worker instruments on provider.
func NewMetrics(provider metric.MeterProvider, clientID string) (*Metrics, error) {
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}
	meter := provider.Meter("mediaenrich/worker", metric.WithInstrumentationVersion("1.0.0"))

	claimed, err := meter.Int64Counter(
		JobsClaimedCounterName,
		metric.WithDescription("Total number of jobs claimed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		JobOutcomesCounterName,
		metric.WithDescription("Total number of job outcomes by kind"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	loopErrors, err := meter.Int64Counter(
		LoopErrorsCounterName,
		metric.WithDescription("Total number of loop-level errors"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	// 1s to 15min, the job timeout.
	duration, err := meter.Float64Histogram(
		JobDurationHistogramName,
		metric.WithDescription("Duration of job processing in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 2.5, 5, 10, 30, 60, 120, 300, 600, 900),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		claimed:    claimed,
		outcomes:   outcomes,
		loopErrors: loopErrors,
		duration:   duration,
		clientAttr: attribute.String(AttrClientID, clientID),
	}, nil
}

// RecordClaim counts one claimed job.
func (m *Metrics) RecordClaim(ctx context.Context) {
	if m == nil {
		return
	}
	m.claimed.Add(ctx, 1, metric.WithAttributes(m.clientAttr))
}

// RecordOutcome counts a job outcome and its duration.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome, mediaType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		m.clientAttr,
		attribute.String(AttrOutcome, outcome),
		attribute.String(AttrMediaType, mediaType),
	)
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordLoopError counts a claim or persistence failure.
func (m *Metrics) RecordLoopError(ctx context.Context) {
	if m == nil {
		return
	}
	m.loopErrors.Add(ctx, 1, metric.WithAttributes(m.clientAttr))
}

// SummarizeMetrics flattens collected data into totals keyed by instrument name.
// Counters report their sum and histograms their observation count.
func SummarizeMetrics(rm metricdata.ResourceMetrics) map[string]int64 {
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return out
}

// MetricsReporter periodically collects from a manual reader and logs totals.
type MetricsReporter struct {
	reader   *sdkmetric.ManualReader
	interval time.Duration
}

// NewMetricsReporter creates a reporter.
func NewMetricsReporter(reader *sdkmetric.ManualReader, interval time.Duration) *MetricsReporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MetricsReporter{reader: reader, interval: interval}
}

// Run reports until ctx is done, then reports once more.
func (r *MetricsReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Report(ctx)
		case <-ctx.Done():
			r.Report(context.WithoutCancel(ctx))
			return
		}
	}
}

// Report collects once and logs the totals.
func (r *MetricsReporter) Report(ctx context.Context) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		slogger.Warn(ctx, "Failed to collect worker metrics", slogger.Fields{"error": err.Error()})
		return
	}

	fields := slogger.Fields{}
	for name, total := range SummarizeMetrics(rm) {
		fields[name] = total
	}
	slogger.Info(ctx, "Worker metrics", fields)
}
