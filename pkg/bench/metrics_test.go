package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDurations_Metrics verifies the sort-and-index statistics on a known
// data set.
func TestDurations_Metrics(t *testing.T) {
	t.Run("Empty Set", func(t *testing.T) {
		assert.Equal(t, Metrics{}, durations(nil).Metrics())
	})

	t.Run("Known Distribution", func(t *testing.T) {
		// 1ms..100ms, shuffled order must not matter.
		ds := make(durations, 0, 100)
		for i := 100; i >= 1; i-- {
			ds = append(ds, time.Duration(i)*time.Millisecond)
		}

		m := ds.Metrics()
		assert.Equal(t, time.Duration(50500)*time.Microsecond, m.Avg)
		assert.Equal(t, 1*time.Millisecond, m.Min)
		assert.Equal(t, 100*time.Millisecond, m.Max)
		// On 100 samples: index = floor(99 * p/100).
		assert.Equal(t, 50*time.Millisecond, m.P50)
		assert.Equal(t, 90*time.Millisecond, m.P90)
		assert.Equal(t, 95*time.Millisecond, m.P95)
		assert.Equal(t, 99*time.Millisecond, m.P99)
	})

	t.Run("Single Element", func(t *testing.T) {
		m := durations{7 * time.Millisecond}.Metrics()
		assert.Equal(t, 7*time.Millisecond, m.Avg)
		assert.Equal(t, 7*time.Millisecond, m.Min)
		assert.Equal(t, 7*time.Millisecond, m.P99)
	})

	t.Run("Does Not Mutate Input", func(t *testing.T) {
		ds := durations{3 * time.Second, 1 * time.Second, 2 * time.Second}
		ds.Metrics()
		assert.Equal(t, durations{3 * time.Second, 1 * time.Second, 2 * time.Second}, ds)
	})
}

// TestSamples_Stats verifies the dimensionless sample statistics.
func TestSamples_Stats(t *testing.T) {
	t.Run("Empty Set", func(t *testing.T) {
		assert.Equal(t, SampleStats{}, samples(nil).Stats())
	})

	t.Run("Known Distribution", func(t *testing.T) {
		ss := samples{5, 1, 3, 2, 4}
		stats := ss.Stats()
		assert.Equal(t, 3.0, stats.Avg)
		assert.Equal(t, 1.0, stats.Min)
		assert.Equal(t, 5.0, stats.Max)
		assert.Equal(t, 3.0, stats.P50)
	})
}
