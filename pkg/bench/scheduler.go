package bench

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SchedulerProgress is a point-in-time snapshot of a running sub-benchmark,
// emitted with every received response.
type SchedulerProgress struct {
	// Progress is the completion percentage in [0, 100], based on wall
	// clock against the configured duration.
	Progress           float64
	TotalRequests      int
	FailedRequests     int
	SuccessfulRequests int
	RequestsThroughput float64
}

// Scheduler wires one executor to a results accumulator and the event bus.
// It owns the response channel between them.
type Scheduler struct {
	id        string
	executor  Executor
	generator TextRequestGenerator
	results   *BenchmarkResults
	bus       *Bus
}

// NewScheduler builds a scheduler and the results accumulator for one
// sub-benchmark.
func NewScheduler(id string, executor Executor, generator TextRequestGenerator, bus *Bus) *Scheduler {
	return &Scheduler{
		id:        id,
		executor:  executor,
		generator: generator,
		results:   NewBenchmarkResults(id, executor.Kind(), executor.Config()),
		bus:       bus,
	}
}

// Results returns the sub-benchmark's accumulator.
func (s *Scheduler) Results() *BenchmarkResults {
	return s.results
}

// Run executes the sub-benchmark to completion or cancellation.
//
// It spawns a drain goroutine that appends every received response to the
// results and publishes a progress event, then runs the executor. When the
// executor returns, the channel is closed and the drain finishes the residual
// responses, so no completed response is ever lost — including on
// cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	responses := make(chan *AggregatedResponse, 100)
	runStart := time.Now()

	var group errgroup.Group
	group.Go(func() error {
		for response := range responses {
			s.results.AddResponse(response)
			s.bus.Publish(BenchmarkProgressEvent{ID: s.id, Progress: s.progress(runStart)})
		}
		return nil
	})

	logrus.WithFields(logrus.Fields{"id": s.id, "kind": s.executor.Kind()}).Info("Starting sub-benchmark")
	err := s.executor.Run(ctx, s.generator, responses)

	// The executor has no in-flight requests once Run returns; closing here
	// lets the drain goroutine exit after the residual responses.
	close(responses)
	_ = group.Wait()

	s.results.SetWallClockBounds(runStart, time.Now())
	logrus.WithFields(logrus.Fields{
		"id":     s.id,
		"total":  s.results.TotalRequests(),
		"failed": s.results.FailedRequests(),
	}).Info("Sub-benchmark finished")
	return err
}

// progress computes the completion snapshot. The percentage is wall-clock
// based: elapsed time since the first response (or since Run started when no
// response arrived yet) against the configured duration, capped at 100.
func (s *Scheduler) progress(runStart time.Time) SchedulerProgress {
	anchor := s.results.StartTime()
	if anchor.IsZero() {
		anchor = runStart
	}

	percent := 100 * time.Since(anchor).Seconds() / s.executor.Config().Duration.Seconds()
	if percent > 100 {
		percent = 100
	}

	return SchedulerProgress{
		Progress:           percent,
		TotalRequests:      s.results.TotalRequests(),
		FailedRequests:     s.results.FailedRequests(),
		SuccessfulRequests: s.results.SuccessfulRequests(),
		RequestsThroughput: s.results.SuccessfulRequestRate(),
	}
}
