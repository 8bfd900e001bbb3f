package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpEngineStart, 100*time.Millisecond, nil)
	c.RecordTiming(OpEngineStart, 300*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	require.NotNil(t, snap.EngineStart)
	assert.Equal(t, int64(2), snap.EngineStart.Count)
	assert.Equal(t, int64(1), snap.EngineStart.Errors)
	assert.Equal(t, int64(400), snap.EngineStart.TotalTimeMs)
	assert.Equal(t, 200.0, snap.EngineStart.AvgTimeMs)
	assert.Equal(t, int64(100), snap.EngineStart.MinTimeMs)
	assert.Equal(t, int64(300), snap.EngineStart.MaxTimeMs)
	assert.Nil(t, snap.EngineRetrieve, "unused operations are omitted")
}

func TestRecordJob(t *testing.T) {
	c := NewCollector()
	c.RecordJob(EventCreated, 1)
	c.RecordJob(EventCreated, 1)
	c.RecordJob(EventCompleted, 1)
	c.RecordJob(EventFailed, 1)
	c.RecordJob(EventPollError, 1)
	c.RecordJob(EventPruned, 3)
	c.RecordJob(EventPruned, 0)
	c.RecordJob("unknown", 1)

	assert.Equal(t, JobCounts{Created: 2, Completed: 1, Failed: 1, PollErrors: 1, Pruned: 3}, c.Snapshot().Jobs)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpRegistry, time.Second, nil)
	c.RecordJob(EventCreated, 1)
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpEngineRetrieve, time.Millisecond, nil)
		}()
		go func() {
			defer wg.Done()
			c.RecordJob(EventCreated, 1)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, int64(50), snap.EngineRetrieve.Count)
	assert.Equal(t, int64(50), snap.Jobs.Created)
}
