package bench

import (
	"sort"
	"time"
)

// Metrics holds the statistical summary of a set of durations. All fields
// serialize as integer nanoseconds, which keeps report round-trips exact.
type Metrics struct {
	Avg time.Duration `json:"avg"`
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// durations is the raw material for a Metrics computation.
type durations []time.Duration

// Metrics computes the full summary by sorting a copy once. Statistics are
// always computed from scratch; nothing is cached.
func (ds durations) Metrics() Metrics {
	if len(ds) == 0 {
		return Metrics{}
	}

	sorted := make(durations, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return Metrics{
		Avg: ds.average(),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		P50: sorted.percentile(50),
		P90: sorted.percentile(90),
		P95: sorted.percentile(95),
		P99: sorted.percentile(99),
	}
}

func (ds durations) average() time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

// percentile returns the Pxx value of a *sorted* slice at index
// floor((n-1)·p/100), without interpolation. The given percentile must be
// within [0, 100].
func (ds durations) percentile(percentile float64) time.Duration {
	if percentile < 0 {
		percentile = 0
	}
	if percentile > 100 {
		percentile = 100
	}
	index := int(float64(len(ds)-1) * (percentile / 100.0))
	return ds[index]
}

// SampleStats is the Metrics counterpart for dimensionless samples, such as
// generated-token counts per request.
type SampleStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type samples []float64

// Stats computes the full summary by sorting a copy once.
func (ss samples) Stats() SampleStats {
	if len(ss) == 0 {
		return SampleStats{}
	}

	sorted := make(samples, len(ss))
	copy(sorted, ss)
	sort.Float64s(sorted)

	var total float64
	for _, s := range ss {
		total += s
	}

	pick := func(p float64) float64 { return sorted[int(float64(len(sorted)-1)*(p/100.0))] }
	return SampleStats{
		Avg: total / float64(len(ss)),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		P50: pick(50),
		P90: pick(90),
		P95: pick(95),
		P99: pick(99),
	}
}
