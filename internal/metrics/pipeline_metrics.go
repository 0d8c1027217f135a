package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("pipeline-metrics")

// PipelineMetrics provides metrics collection for the specification
// pipeline and CAD regeneration runs.
type PipelineMetrics struct {
	briefsConfirmedCounter  metric.Int64Counter
	specsGeneratedCounter   metric.Int64Counter
	specsRejectedCounter    metric.Int64Counter
	regenStartedCounter     metric.Int64Counter
	regenCompletedCounter   metric.Int64Counter
	regenFailedCounter      metric.Int64Counter
	regenDurationHistogram  metric.Float64Histogram
	regenActiveGauge        metric.Int64UpDownCounter
}

// NewPipelineMetrics creates a new pipeline metrics collector.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	briefsConfirmedCounter, err := meter.Int64Counter(
		"cabinet_studio.briefs.confirmed",
		metric.WithDescription("Total number of brief revisions confirmed"),
		metric.WithUnit("{revision}"),
	)
	if err != nil {
		return nil, err
	}

	specsGeneratedCounter, err := meter.Int64Counter(
		"cabinet_studio.specs.generated",
		metric.WithDescription("Total number of specification revisions generated"),
		metric.WithUnit("{revision}"),
	)
	if err != nil {
		return nil, err
	}

	specsRejectedCounter, err := meter.Int64Counter(
		"cabinet_studio.specs.validation_failed",
		metric.WithDescription("Total number of generation attempts blocked by validation or mapping"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	regenStartedCounter, err := meter.Int64Counter(
		"cabinet_studio.regenerations.started",
		metric.WithDescription("Total number of CAD regenerations started"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	regenCompletedCounter, err := meter.Int64Counter(
		"cabinet_studio.regenerations.completed",
		metric.WithDescription("Total number of CAD regenerations completed successfully"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	regenFailedCounter, err := meter.Int64Counter(
		"cabinet_studio.regenerations.failed",
		metric.WithDescription("Total number of CAD regenerations that failed"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	regenDurationHistogram, err := meter.Float64Histogram(
		"cabinet_studio.regeneration.duration",
		metric.WithDescription("Duration of CAD regeneration runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	regenActiveGauge, err := meter.Int64UpDownCounter(
		"cabinet_studio.regenerations.active",
		metric.WithDescription("Number of currently running CAD regenerations"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		briefsConfirmedCounter: briefsConfirmedCounter,
		specsGeneratedCounter:  specsGeneratedCounter,
		specsRejectedCounter:   specsRejectedCounter,
		regenStartedCounter:    regenStartedCounter,
		regenCompletedCounter:  regenCompletedCounter,
		regenFailedCounter:     regenFailedCounter,
		regenDurationHistogram: regenDurationHistogram,
		regenActiveGauge:       regenActiveGauge,
	}, nil
}

// RecordBriefConfirmed records a confirmed brief revision.
func (pm *PipelineMetrics) RecordBriefConfirmed(ctx context.Context, projectID string, revision int) {
	pm.briefsConfirmedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("brief.revision", revision),
		),
	)
}

// RecordSpecGenerated records a persisted specification revision.
func (pm *PipelineMetrics) RecordSpecGenerated(ctx context.Context, projectID string, revision int) {
	pm.specsGeneratedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("spec.revision", revision),
		),
	)
}

// RecordSpecBlocked records a generation attempt stopped by schema,
// manufacturability, or mapping errors.
func (pm *PipelineMetrics) RecordSpecBlocked(ctx context.Context, projectID, stage string) {
	pm.specsRejectedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("stage", stage),
		),
	)
}

// RecordRegenerationStarted records a regeneration job kickoff.
func (pm *PipelineMetrics) RecordRegenerationStarted(ctx context.Context, projectID string, revision int) {
	pm.regenStartedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("spec.revision", revision),
		),
	)
	pm.regenActiveGauge.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// RecordRegenerationCompleted records a successful regeneration run.
func (pm *PipelineMetrics) RecordRegenerationCompleted(ctx context.Context, projectID string, revision int, duration time.Duration) {
	pm.regenCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("spec.revision", revision),
			attribute.String("status", "completed"),
		),
	)
	pm.regenDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("status", "completed"),
		),
	)
	pm.regenActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}

// RecordRegenerationFailed records a failed regeneration run.
func (pm *PipelineMetrics) RecordRegenerationFailed(ctx context.Context, projectID string, revision int, errorType string, duration time.Duration) {
	pm.regenFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("spec.revision", revision),
			attribute.String("status", "failed"),
			attribute.String("error.type", errorType),
		),
	)
	pm.regenDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("status", "failed"),
		),
	)
	pm.regenActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("project.id", projectID),
		),
	)
}
