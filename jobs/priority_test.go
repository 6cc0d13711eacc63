package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityBandBoundaries(t *testing.T) {
	assert.True(t, FirstUserInteractive < LastUserInteractive)
	assert.True(t, LastUserInteractive < FirstUserInitiated)
	assert.True(t, LastUserInitiated < FirstUserVisibleBackground)
	assert.True(t, LastUserVisibleBackground < FirstBackground)
	assert.True(t, FirstBackground <= DeallocateResourcesMin)
	assert.Equal(t, DeallocateResourcesMin+32, DeallocateResourcesMax)
	assert.Equal(t, DeallocateResourcesMax, LastBackground)
}

func TestPriorityClassification(t *testing.T) {
	assert.True(t, EndSession.IsHighPriorityPerformanceJob())
	assert.False(t, EndSession.IsLowPriorityPerformanceJob())
	assert.False(t, EndSession.IsEfficiencyJob())

	assert.True(t, LoadAssetData.IsLowPriorityPerformanceJob())
	assert.False(t, LoadAssetData.IsHighPriorityPerformanceJob())

	assert.True(t, HousekeepingSweep.IsEfficiencyJob())
}

func TestPriorityArithmetic(t *testing.T) {
	assert.Equal(t, Dispatch, EndSession.Add(Priority(uint8(Dispatch)-uint8(EndSession))))
	assert.Equal(t, EndSession, Dispatch.Sub(Priority(uint8(Dispatch)-uint8(EndSession))))
	assert.Equal(t, Priority(5), Priority(10).Scale(0.5))
}

func TestDeallocationPriorityForSizeIsMonotonic(t *testing.T) {
	small := DeallocationPriorityForSize(8)
	medium := DeallocationPriorityForSize(1024)
	large := DeallocationPriorityForSize(1024 * 1024)

	assert.True(t, small >= DeallocateResourcesMin && small <= DeallocateResourcesMax)
	assert.True(t, large >= DeallocateResourcesMin && large <= DeallocateResourcesMax)

	// Larger deallocations are more urgent: lower ordinal value.
	assert.True(t, large <= medium)
	assert.True(t, medium <= small)
}

func TestThreadPriorityBandMatchesClassification(t *testing.T) {
	band, ratio := EndSession.ThreadPriorityBand()
	assert.Equal(t, ThreadPriorityHigh, band)
	assert.GreaterOrEqual(t, ratio, 0.0)
	assert.LessOrEqual(t, ratio, 1.0)

	band, _ = HousekeepingSweep.ThreadPriorityBand()
	assert.Equal(t, ThreadPriorityBelowNormal, band)

	band, _ = DeallocateResourcesMin.ThreadPriorityBand()
	assert.Equal(t, ThreadPriorityLow, band)
}
