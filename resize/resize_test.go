package resize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fractalgrid/children/resize"
)

func members(n int) []string {
	m := make([]string, n)
	for i := range m {
		m[i] = "m"
	}
	return m
}

func TestThresholdUpscalesOnHighLoad(t *testing.T) {
	stats := resize.NewStats()
	rz := resize.NewThreshold(10, 1, 2)
	rz.SetLowerBound(1)

	stats.SetProcessed(100)
	d := rz.Scale(stats, members(2))
	assert.Equal(t, resize.Upscale, d.Directive)
	assert.Equal(t, 2, d.Count)
}

func TestThresholdDownscalesOnLowLoadButNotBelowFloor(t *testing.T) {
	stats := resize.NewStats()
	rz := resize.NewThreshold(100, 5, 1)
	rz.SetLowerBound(2)

	// Prime the delta tracking, then observe a near-idle interval.
	stats.SetProcessed(1000)
	rz.Scale(stats, members(4))

	stats.SetProcessed(1001)
	d := rz.Scale(stats, members(4))
	assert.Equal(t, resize.Downscale, d.Directive)
	assert.Equal(t, 1, d.Count)

	// At the floor, idle load no longer shrinks the group.
	stats.SetProcessed(1002)
	d = rz.Scale(stats, members(2))
	assert.Equal(t, resize.DoNothing, d.Directive)
}

func TestThresholdSteadyLoadDoesNothing(t *testing.T) {
	stats := resize.NewStats()
	rz := resize.NewThreshold(100, 1, 1)
	rz.SetLowerBound(1)

	stats.SetProcessed(50)
	rz.Scale(stats, members(2))

	stats.SetProcessed(150) // 50 per member: between the watermarks
	d := rz.Scale(stats, members(2))
	assert.Equal(t, resize.DoNothing, d.Directive)
}

func TestStatsCountersAreIndependent(t *testing.T) {
	stats := resize.NewStats()
	stats.AddLaunched(3)
	stats.AddHelpers(1)
	stats.IncRestarts()
	stats.SetProcessed(7)

	assert.EqualValues(t, 3, stats.Launched())
	assert.EqualValues(t, 1, stats.Helpers())
	assert.EqualValues(t, 1, stats.Restarts())
	assert.EqualValues(t, 7, stats.Processed())

	as := resize.NewActorStats()
	as.IncProcessed()
	as.IncProcessed()
	as.IncFaults()
	assert.EqualValues(t, 2, as.Processed())
	assert.EqualValues(t, 1, as.Faults())
}
