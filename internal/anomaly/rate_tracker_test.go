package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateTracker_ProjectsDailyCost(t *testing.T) {
	rt := NewRateTracker(time.Hour)
	now := time.Now()
	for i := 0; i < 10; i++ {
		rt.Record(now, 100, 1.0)
	}
	// 10 requests * $1 within the 1h window => hourly rate $10 => daily projection $240
	assert.InDelta(t, 240.0, rt.ProjectedDailyCostUSD(now), 1e-9)
}

func TestRateTracker_EvictsOldEntries(t *testing.T) {
	rt := NewRateTracker(time.Hour)
	base := time.Now()
	rt.Record(base, 50, 5.0)
	later := base.Add(2 * time.Hour)
	assert.Equal(t, 0.0, rt.ProjectedDailyCostUSD(later))
	assert.Equal(t, 0.0, rt.RequestRatePerHour(later))
}

func TestRateTracker_TokenAndRequestRate(t *testing.T) {
	rt := NewRateTracker(time.Hour)
	now := time.Now()
	rt.Record(now, 1000, 0)
	rt.Record(now, 2000, 0)
	assert.InDelta(t, 2.0, rt.RequestRatePerHour(now), 1e-9)
	assert.InDelta(t, 3000.0, rt.TokenRatePerHour(now), 1e-9)
}
