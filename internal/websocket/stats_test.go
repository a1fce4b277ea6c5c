package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushStats_Pages(t *testing.T) {
	stats := NewPushStats()

	stats.PageJoined()
	stats.PageJoined()
	stats.PageJoined()
	stats.PageLeft(30 * time.Second)

	snap := stats.Snapshot()
	assert.Equal(t, int64(3), snap.PagesJoined)
	assert.Equal(t, int64(2), snap.PagesActive)
	assert.Equal(t, int64(3), snap.PagesPeak)

	// The peak survives pages leaving.
	stats.PageLeft(90 * time.Second)
	snap = stats.Snapshot()
	assert.Equal(t, int64(1), snap.PagesActive)
	assert.Equal(t, int64(3), snap.PagesPeak)
	assert.Equal(t, float64(60), snap.AvgSessionSeconds)
}

func TestPushStats_Pushes(t *testing.T) {
	stats := NewPushStats()

	stats.PushDelivered(1024)
	stats.PushDelivered(512)
	stats.PushFailed()

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.PushesDelivered)
	assert.Equal(t, int64(1), snap.PushesFailed)
	assert.Equal(t, int64(1536), snap.PushBytes)
}

func TestPushStats_Frames(t *testing.T) {
	stats := NewPushStats()

	stats.FrameReceived(20)
	stats.FrameReceived(20)

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.FramesReceived)
	assert.Equal(t, int64(40), snap.FrameBytes)
}

func TestPushStats_QueuePeak(t *testing.T) {
	stats := NewPushStats()

	stats.ObserveQueueDepth(3)
	stats.ObserveQueueDepth(9)
	stats.ObserveQueueDepth(5)

	assert.Equal(t, int64(9), stats.Snapshot().QueuePeak)
}

func TestPushStats_Failures(t *testing.T) {
	stats := NewPushStats()

	stats.RecordFailure("upgrade_failed")
	stats.RecordFailure("upgrade_failed")
	stats.PageDropped()

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.FailuresByReason["upgrade_failed"])
	assert.Equal(t, int64(1), snap.PagesDropped)

	// The snapshot map is a copy, not a view.
	snap.FailuresByReason["upgrade_failed"] = 99
	assert.Equal(t, int64(2), stats.Snapshot().FailuresByReason["upgrade_failed"])
}

func TestPushStats_NoFailuresOmitsMap(t *testing.T) {
	stats := NewPushStats()
	assert.Nil(t, stats.Snapshot().FailuresByReason)
}

func TestPushStats_Reset(t *testing.T) {
	stats := NewPushStats()

	stats.PageJoined()
	stats.PushDelivered(100)
	stats.RecordFailure("upgrade_failed")
	stats.Reset()

	snap := stats.Snapshot()
	assert.Zero(t, snap.PagesJoined)
	assert.Zero(t, snap.PagesActive)
	assert.Zero(t, snap.PushesDelivered)
	assert.Zero(t, snap.PushBytes)
	assert.Nil(t, snap.FailuresByReason)
}

func TestPushStats_Concurrency(t *testing.T) {
	stats := NewPushStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.PageJoined()
				stats.PushDelivered(10)
				stats.FrameReceived(5)
				stats.PageLeft(time.Second)
			}
		}()
	}
	wg.Wait()

	snap := stats.Snapshot()
	require.Equal(t, int64(1000), snap.PagesJoined)
	assert.Equal(t, int64(0), snap.PagesActive)
	assert.Equal(t, int64(1000), snap.PushesDelivered)
	assert.Equal(t, int64(10000), snap.PushBytes)
	assert.Equal(t, int64(1000), snap.FramesReceived)
}

func TestGlobalStats(t *testing.T) {
	require.NotNil(t, Stats())
	assert.Same(t, Stats(), Stats())
}
