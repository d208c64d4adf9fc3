package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricTestsProduced     = "synthfuzz.tests.produced"
	metricFitnessViolations = "synthfuzz.fitness.violations"
	metricRetriesExhausted  = "synthfuzz.retries.exhausted"
	metricCompilerOutcomes  = "synthfuzz.compiler.outcomes"
	metricStrategyDuration  = "synthfuzz.strategy.duration.seconds"

	attrStrategy = "strategy"
	attrKind     = "kind"
	attrOutcome  = "outcome"
)

// durationBucketBoundaries covers a single Mutate call (sub-millisecond)
// through a slow Edit retry chain (a few seconds), the way
// pkg/observability/metrics.go's durationBucketBoundaries is scaled to the
// teacher's own request latencies.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// FuzzMetrics holds the OTel instruments this module records against:
// tests produced per strategy, fitness violations by kind, retries
// exhausted, compiler accept/reject/timeout counts, and mutation-kernel
// wall time per strategy.
type FuzzMetrics struct {
	testsProduced     metric.Int64Counter
	fitnessViolations metric.Int64Counter
	retriesExhausted  metric.Int64Counter
	compilerOutcomes  metric.Int64Counter
	strategyDuration  metric.Float64Histogram
}

// NewFuzzMetrics creates the instrument set from mt.
func NewFuzzMetrics(mt metric.Meter) (*FuzzMetrics, error) {
	testsProduced, err := mt.Int64Counter(metricTestsProduced,
		metric.WithDescription("Number of test cases produced, by strategy"),
		metric.WithUnit("{test}"))
	if err != nil {
		return nil, fmt.Errorf("observability: create %s: %w", metricTestsProduced, err)
	}

	fitnessViolations, err := mt.Int64Counter(metricFitnessViolations,
		metric.WithDescription("Number of fitness violations, by kind"),
		metric.WithUnit("{violation}"))
	if err != nil {
		return nil, fmt.Errorf("observability: create %s: %w", metricFitnessViolations, err)
	}

	retriesExhausted, err := mt.Int64Counter(metricRetriesExhausted,
		metric.WithDescription("Number of edit/insert attempts that exhausted their fitness retry budget"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, fmt.Errorf("observability: create %s: %w", metricRetriesExhausted, err)
	}

	compilerOutcomes, err := mt.Int64Counter(metricCompilerOutcomes,
		metric.WithDescription("Compiler driver invocation outcomes (accept/reject/timeout)"),
		metric.WithUnit("{invocation}"))
	if err != nil {
		return nil, fmt.Errorf("observability: create %s: %w", metricCompilerOutcomes, err)
	}

	strategyDuration, err := mt.Float64Histogram(metricStrategyDuration,
		metric.WithDescription("Mutation kernel wall time per strategy"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...))
	if err != nil {
		return nil, fmt.Errorf("observability: create %s: %w", metricStrategyDuration, err)
	}

	return &FuzzMetrics{
		testsProduced:     testsProduced,
		fitnessViolations: fitnessViolations,
		retriesExhausted:  retriesExhausted,
		compilerOutcomes:  compilerOutcomes,
		strategyDuration:  strategyDuration,
	}, nil
}

// RecordTest increments the per-strategy produced-test counter.
func (m *FuzzMetrics) RecordTest(ctx context.Context, strategy string) {
	m.testsProduced.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStrategy, strategy)))
}

// RecordFitnessViolation increments the fitness-violation counter for kind
// (e.g. "sub", "dupe", "no_insert_loc").
func (m *FuzzMetrics) RecordFitnessViolation(ctx context.Context, kind string) {
	m.fitnessViolations.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordRetriesExhausted increments the retries-exhausted counter for
// strategy.
func (m *FuzzMetrics) RecordRetriesExhausted(ctx context.Context, strategy string) {
	m.retriesExhausted.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStrategy, strategy)))
}

// RecordCompilerOutcome increments the compiler-outcome counter for outcome
// ("accept", "reject", or "timeout").
func (m *FuzzMetrics) RecordCompilerOutcome(ctx context.Context, outcome string) {
	m.compilerOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordStrategyDuration records how long one Kernel.Create call for
// strategy took.
func (m *FuzzMetrics) RecordStrategyDuration(ctx context.Context, strategy string, d time.Duration) {
	m.strategyDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrStrategy, strategy)))
}
