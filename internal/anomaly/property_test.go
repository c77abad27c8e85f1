package anomaly

import (
	"testing"
	"time"

	"github.com/guardianai/telemetry-pipeline/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSeverityForZ_MonotonicInAbsZ checks that severityForZ never ranks
// a larger |z| below a smaller one — the four severity bands are
// non-decreasing in the input.
func TestSeverityForZ_MonotonicInAbsZ(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.Float64Range(0, 20).Draw(rt, "lo")
		hi := rapid.Float64Range(0, 20).Draw(rt, "hi")
		if lo > hi {
			lo, hi = hi, lo
		}

		assert.LessOrEqual(rt, severityForZ(lo).Rank(), severityForZ(hi).Rank(),
			"severity must not decrease as |z| grows: severityForZ(%v)=%v > severityForZ(%v)=%v",
			lo, severityForZ(lo), hi, severityForZ(hi))
	})
}

func TestSeverityForZ_BandBoundaries(t *testing.T) {
	require.Equal(t, record.SeverityLow, severityForZ(0))
	require.Equal(t, record.SeverityMedium, severityForZ(3.5))
	require.Equal(t, record.SeverityHigh, severityForZ(4))
	require.Equal(t, record.SeverityCritical, severityForZ(5))
}

// TestRollingWindow_CapacityEviction feeds a window an arbitrary
// sequence of values with a horizon long enough that time-based
// eviction never fires, and checks that the retained sample count never
// exceeds Capacity and the reported mean always lies within
// [min, max] of everything ever added — i.e. capacity eviction drops
// only the oldest entries, never corrupts the running statistics.
func TestRollingWindow_CapacityEviction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(rt, "capacity")
		n := rapid.IntRange(0, 100).Draw(rt, "n")

		w := NewRollingWindow(capacity, time.Hour)
		now := time.Unix(0, 0)

		var lastN []float64
		for i := 0; i < n; i++ {
			v := rapid.Float64Range(-1000, 1000).Draw(rt, "v")
			w.Add(v, now)
			now = now.Add(time.Second)

			lastN = append(lastN, v)
			if len(lastN) > capacity {
				lastN = lastN[len(lastN)-capacity:]
			}
		}

		count, mean, _ := w.Stats()
		assert.LessOrEqual(rt, count, capacity, "retained sample count must never exceed capacity")
		assert.Equal(rt, len(lastN), count, "window must retain exactly the most recent min(n, capacity) samples")

		if count > 0 {
			min, max := lastN[0], lastN[0]
			for _, v := range lastN {
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
			assert.GreaterOrEqual(rt, mean, min-1e-6)
			assert.LessOrEqual(rt, mean, max+1e-6)
		}
	})
}

// TestRollingWindow_HorizonEviction checks that a sample older than the
// horizon is evicted even when capacity would otherwise retain it.
func TestRollingWindow_HorizonEviction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		horizonSeconds := rapid.IntRange(1, 3600).Draw(rt, "horizonSeconds")
		horizon := time.Duration(horizonSeconds) * time.Second

		w := NewRollingWindow(1000, horizon)
		base := time.Unix(0, 0)
		w.Add(1.0, base)

		past := base.Add(horizon + time.Second)
		w.Add(2.0, past)

		count, mean, _ := w.Stats()
		assert.Equal(rt, 1, count, "sample older than horizon must be evicted")
		assert.InDelta(rt, 2.0, mean, 1e-9)
	})
}
