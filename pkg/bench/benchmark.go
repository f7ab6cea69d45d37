// Package bench implements the benchmark execution engine: the request and
// response model, the corpus-backed request generator, the closed-loop and
// open-loop executors, the scheduler that ties an executor to a results
// accumulator, the statistics, and the orchestrator that composes
// sub-benchmarks into a full run.
package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// BenchmarkKind selects the sub-benchmark sequence the orchestrator runs.
type BenchmarkKind string

const (
	// KindThroughput discovers saturation throughput with a closed loop.
	KindThroughput BenchmarkKind = "throughput"
	// KindSweep discovers throughput, then measures latency on a fraction
	// grid of it with open-loop runs.
	KindSweep BenchmarkKind = "sweep"
	// KindRate measures latency at explicitly configured arrival rates.
	KindRate BenchmarkKind = "rate"
)

// ParseBenchmarkKind converts a string flag value to a BenchmarkKind.
func ParseBenchmarkKind(s string) (BenchmarkKind, error) {
	switch BenchmarkKind(s) {
	case KindThroughput, KindSweep, KindRate:
		return BenchmarkKind(s), nil
	default:
		return "", fmt.Errorf("unknown benchmark kind %q", s)
	}
}

// BenchmarkConfig is the top-level benchmark configuration.
type BenchmarkConfig struct {
	Kind           BenchmarkKind `json:"benchmark_kind" yaml:"benchmark_kind"`
	MaxVUs         int           `json:"max_vus" yaml:"max_vus"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
	WarmupDuration time.Duration `json:"warmup_duration" yaml:"warmup_duration"`

	// Rates lists the arrival rates for KindRate.
	Rates []float64 `json:"rates,omitempty" yaml:"rates,omitempty"`
	// NumRates is the number of grid points for KindSweep.
	NumRates int `json:"num_rates" yaml:"num_rates"`

	PromptOptions TokenizeOptions `json:"prompt_options" yaml:"prompt_options"`
	DecodeOptions TokenizeOptions `json:"decode_options" yaml:"decode_options"`

	// Tokenizer is the id of the tokenizer used for prompt calibration.
	Tokenizer string `json:"tokenizer" yaml:"tokenizer"`

	ExtraMetadata map[string]string `json:"extra_metadata,omitempty" yaml:"extra_metadata,omitempty"`
}

// Validate checks the configuration before any network I/O happens.
func (c BenchmarkConfig) Validate() error {
	if _, err := ParseBenchmarkKind(string(c.Kind)); err != nil {
		return err
	}
	if c.MaxVUs < 1 {
		return errors.New("max VUs must be at least 1")
	}
	if c.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	if c.WarmupDuration <= 0 {
		return errors.New("warmup duration must be positive")
	}
	if c.Kind == KindRate && len(c.Rates) == 0 {
		return errors.New("rate benchmark requires at least one rate")
	}
	for _, rate := range c.Rates {
		if rate <= 0 {
			return fmt.Errorf("rate %f must be positive", rate)
		}
	}
	if c.Kind == KindSweep && c.NumRates < 1 {
		return errors.New("sweep benchmark requires at least one rate point")
	}
	if err := c.PromptOptions.Validate(); err != nil {
		return fmt.Errorf("invalid prompt options: %w", err)
	}
	if err := c.DecodeOptions.Validate(); err != nil {
		return fmt.Errorf("invalid decode options: %w", err)
	}
	return nil
}

// Benchmark orchestrates a sequence of sub-benchmarks according to the
// configured kind, collecting each sub-benchmark's results in execution
// order.
type Benchmark struct {
	config    BenchmarkConfig
	backend   TextGenerationBackend
	generator TextRequestGenerator
	bus       *Bus

	results []*BenchmarkResults
}

// NewBenchmark builds an orchestrator over a validated config.
func NewBenchmark(
	config BenchmarkConfig, backend TextGenerationBackend, generator TextRequestGenerator, bus *Bus,
) (*Benchmark, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Benchmark{config: config, backend: backend, generator: generator, bus: bus}, nil
}

// Config returns the benchmark's configuration.
func (b *Benchmark) Config() BenchmarkConfig {
	return b.config
}

// Results returns the per-sub-benchmark results collected so far, in
// execution order. Warmup results are included, marked as such.
func (b *Benchmark) Results() []*BenchmarkResults {
	return b.results
}

// Run executes the benchmark. Cancellation of ctx stops the current
// sub-benchmark and skips the remainder; the results collected so far stay
// available for a partial report.
func (b *Benchmark) Run(ctx context.Context) error {
	switch b.config.Kind {
	case KindThroughput:
		_, err := b.runThroughput(ctx)
		return err
	case KindSweep:
		return b.runSweep(ctx)
	case KindRate:
		return b.runRates(ctx, b.config.Rates)
	default:
		return fmt.Errorf("unknown benchmark kind %q", b.config.Kind)
	}
}

// runThroughput runs the warmup and the closed-loop throughput discovery,
// returning the discovered successful request rate.
func (b *Benchmark) runThroughput(ctx context.Context) (float64, error) {
	warmupConfig := ExecutorConfig{MaxVUs: 1, Duration: b.config.WarmupDuration}
	warmup, err := NewConstantVUsExecutor(b.backend, warmupConfig)
	if err != nil {
		return 0, err
	}
	if _, err := b.runSub(ctx, "warmup", warmup, true); err != nil {
		return 0, err
	}

	throughputConfig := ExecutorConfig{MaxVUs: b.config.MaxVUs, Duration: b.config.Duration}
	throughput, err := NewConstantVUsExecutor(b.backend, throughputConfig)
	if err != nil {
		return 0, err
	}
	results, err := b.runSub(ctx, "throughput", throughput, false)
	if err != nil {
		return 0, err
	}

	maxThroughput := results.SuccessfulRequestRate()
	logrus.WithField("requests_per_sec", maxThroughput).Info("Discovered max throughput")
	return maxThroughput, nil
}

// runSweep discovers the max throughput, then measures open-loop latency at
// NumRates evenly spaced fractions of it.
func (b *Benchmark) runSweep(ctx context.Context) error {
	maxThroughput, err := b.runThroughput(ctx)
	if err != nil {
		return err
	}
	if maxThroughput <= 0 {
		return errors.New("throughput discovery measured no successful requests")
	}

	rates := make([]float64, 0, b.config.NumRates)
	for k := 1; k <= b.config.NumRates; k++ {
		rates = append(rates, maxThroughput*float64(k)/float64(b.config.NumRates))
	}
	return b.runRates(ctx, rates)
}

// runRates runs one open-loop sub-benchmark per rate.
func (b *Benchmark) runRates(ctx context.Context, rates []float64) error {
	for _, rate := range rates {
		rate := rate
		config := ExecutorConfig{MaxVUs: b.config.MaxVUs, Duration: b.config.Duration, Rate: &rate}
		executor, err := NewConstantArrivalRateExecutor(b.backend, config)
		if err != nil {
			return err
		}

		id := fmt.Sprintf("%s@%.2freq/s", ExecutorConstantArrivalRate, rate)
		if _, err := b.runSub(ctx, id, executor, false); err != nil {
			return err
		}
	}
	return nil
}

// runSub runs a single sub-benchmark with start/end events around it and
// snapshots its results. A canceled context before the run skips it and
// surfaces the cancellation.
func (b *Benchmark) runSub(ctx context.Context, id string, executor Executor, warmup bool) (*BenchmarkResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.bus.Publish(BenchmarkStartEvent{ID: id})
	b.bus.Publish(NewMessageEvent(logrus.InfoLevel, fmt.Sprintf("Starting sub-benchmark %s", id)))

	scheduler := NewScheduler(id, executor, b.generator, b.bus)
	if warmup {
		scheduler.Results().MarkWarmup()
	}

	err := scheduler.Run(ctx)
	b.results = append(b.results, scheduler.Results())
	b.bus.Publish(BenchmarkEndEvent{ID: id, Results: scheduler.Results()})

	if err != nil {
		return nil, err
	}
	// A cancellation during the run still produced partial results above;
	// surface it so the remaining sub-benchmarks are skipped.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return scheduler.Results(), ctxErr
	}
	return scheduler.Results(), nil
}
