package bench

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
)

// ExecutorKind identifies the load pattern an executor drives.
type ExecutorKind string

const (
	// ExecutorConstantVUs is the closed-loop pattern: a fixed population of
	// virtual users, each holding one in-flight request at a time. The
	// request rate is emergent. Used to measure saturation throughput.
	ExecutorConstantVUs ExecutorKind = "constant_vus"
	// ExecutorConstantArrivalRate is the open-loop pattern: arrivals follow
	// a rate-controlled schedule and concurrency is emergent, capped by the
	// VU ceiling. Used to measure tail latency under a fixed offered load.
	ExecutorConstantArrivalRate ExecutorKind = "constant_arrival_rate"
)

// ExecutorConfig parameterizes one executor run.
type ExecutorConfig struct {
	// MaxVUs is the number of workers (closed loop) or the concurrency
	// ceiling (open loop).
	MaxVUs int `json:"max_vus" yaml:"max_vus"`
	// Duration bounds the run; the executor stops issuing requests once it
	// elapses.
	Duration time.Duration `json:"duration" yaml:"duration"`
	// Rate is the target arrival rate in requests per second. Required for
	// the constant-arrival-rate executor, unused otherwise.
	Rate *float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
}

// Validate checks the config against the executor kind it will drive.
func (c ExecutorConfig) Validate(kind ExecutorKind) error {
	if c.Duration <= 0 {
		return errors.New("executor duration must be positive")
	}
	if c.MaxVUs < 1 {
		return errors.New("executor needs at least one virtual user")
	}
	if kind == ExecutorConstantArrivalRate && (c.Rate == nil || *c.Rate <= 0) {
		return errors.New("constant arrival rate executor requires a positive rate")
	}
	return nil
}

// Executor drives concurrency under one load pattern, sinking every completed
// response into the given channel.
//
// Run returns once the configured duration elapses or the context is
// canceled, and only after all in-flight requests have terminated; the caller
// may close the sink as soon as Run returns. Cancellation propagates to
// in-flight requests through the context, so they abort within one network
// round-trip.
type Executor interface {
	Run(ctx context.Context, generator TextRequestGenerator, sink chan<- *AggregatedResponse) error
	Kind() ExecutorKind
	Config() ExecutorConfig
}

// ConstantVUsExecutor implements the closed-loop pattern.
type ConstantVUsExecutor struct {
	backend TextGenerationBackend
	config  ExecutorConfig
}

// NewConstantVUsExecutor validates the config and builds the executor.
func NewConstantVUsExecutor(backend TextGenerationBackend, config ExecutorConfig) (*ConstantVUsExecutor, error) {
	if err := config.Validate(ExecutorConstantVUs); err != nil {
		return nil, err
	}
	return &ConstantVUsExecutor{backend: backend, config: config}, nil
}

// Kind implements the Executor interface.
func (e *ConstantVUsExecutor) Kind() ExecutorKind { return ExecutorConstantVUs }

// Config implements the Executor interface.
func (e *ConstantVUsExecutor) Config() ExecutorConfig { return e.config }

// Run spawns exactly MaxVUs workers. Each worker loops pulling a request from
// the generator and awaiting its completion; backpressure is the request
// latency itself.
func (e *ConstantVUsExecutor) Run(
	ctx context.Context, generator TextRequestGenerator, sink chan<- *AggregatedResponse,
) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	logrus.WithField("max_vus", e.config.MaxVUs).Debug("Starting constant VUs executor")

	var wg sync.WaitGroup
	for i := 0; i < e.config.MaxVUs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				e.backend.Generate(ctx, generator.GenerateRequest(), sink)
			}
		}()
	}

	wg.Wait()
	logrus.Debug("Constant VUs executor finished")
	return nil
}

// ConstantArrivalRateExecutor implements the open-loop pattern.
type ConstantArrivalRateExecutor struct {
	backend TextGenerationBackend
	config  ExecutorConfig
}

// NewConstantArrivalRateExecutor validates the config and builds the executor.
func NewConstantArrivalRateExecutor(backend TextGenerationBackend, config ExecutorConfig) (*ConstantArrivalRateExecutor, error) {
	if err := config.Validate(ExecutorConstantArrivalRate); err != nil {
		return nil, err
	}
	return &ConstantArrivalRateExecutor{backend: backend, config: config}, nil
}

// Kind implements the Executor interface.
func (e *ConstantArrivalRateExecutor) Kind() ExecutorKind { return ExecutorConstantArrivalRate }

// Config implements the Executor interface.
func (e *ConstantArrivalRateExecutor) Config() ExecutorConfig { return e.config }

// Run schedules request arrivals as a Poisson process at the configured mean
// rate: inter-arrival times are drawn from Exponential(rate). Each arrival
// takes a permit from a pool of MaxVUs, spawns the request, and returns the
// permit on completion. When permits are exhausted the arrival blocks until
// one frees; the resulting shortfall of observed rate below target rate is
// how saturation shows up in the results.
func (e *ConstantArrivalRateExecutor) Run(
	ctx context.Context, generator TextRequestGenerator, sink chan<- *AggregatedResponse,
) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	rate := *e.config.Rate
	logrus.WithFields(logrus.Fields{"rate": rate, "max_vus": e.config.MaxVUs}).
		Debug("Starting constant arrival rate executor")

	interArrival := distuv.Exponential{Rate: rate}
	permits := make(chan struct{}, e.config.MaxVUs)

	var wg sync.WaitGroup
arrivals:
	for {
		wait := time.Duration(interArrival.Rand() * float64(time.Second))
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			break arrivals
		case <-timer.C:
		}

		// Block the arrival until a permit frees.
		select {
		case <-ctx.Done():
			break arrivals
		case permits <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-permits }()
			e.backend.Generate(ctx, generator.GenerateRequest(), sink)
		}()
	}

	wg.Wait()
	logrus.Debug("Constant arrival rate executor finished")
	return nil
}
