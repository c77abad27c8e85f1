package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollingWindow_MeanAndStdDev(t *testing.T) {
	w := NewRollingWindow(100, time.Hour)
	now := time.Now()
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Add(v, now)
	}
	count, mean, stddev := w.Stats()
	assert.Equal(t, 8, count)
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stddev, 1e-9)
}

func TestRollingWindow_EvictsByCapacity(t *testing.T) {
	w := NewRollingWindow(3, time.Hour)
	now := time.Now()
	w.Add(1, now)
	w.Add(2, now)
	w.Add(3, now)
	w.Add(100, now)
	count, _, _ := w.Stats()
	assert.Equal(t, 3, count)
}

func TestRollingWindow_EvictsByHorizon(t *testing.T) {
	w := NewRollingWindow(100, time.Minute)
	base := time.Now()
	w.Add(1, base)
	w.Add(2, base.Add(2*time.Minute))
	count, mean, _ := w.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 2.0, mean)
}

func TestRollingWindow_ZScoreFloorsStdDev(t *testing.T) {
	w := NewRollingWindow(10, time.Hour)
	now := time.Now()
	w.Add(5, now)
	w.Add(5, now)
	z := w.ZScore(5)
	assert.Equal(t, 0.0, z)

	z2 := w.ZScore(6)
	assert.Greater(t, z2, 0.0)
}

func TestRollingWindow_SeedReproducesMean(t *testing.T) {
	w := NewRollingWindow(100, time.Hour)
	w.seed(10.0, 2.0, 10, time.Now())
	count, mean, stddev := w.Stats()
	assert.Equal(t, 10, count)
	assert.InDelta(t, 10.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stddev, 1e-9)
}
