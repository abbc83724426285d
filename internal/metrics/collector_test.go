package metrics_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/datachat/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmpty(t *testing.T) {
	c := metrics.NewCollector()

	snap := c.Snapshot()
	assert.Nil(t, snap.ChatProcess)
	assert.Nil(t, snap.Recycle)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestRecordCall(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordCall(metrics.OpChatProcess, 100*time.Millisecond, nil)
	c.RecordCall(metrics.OpChatProcess, 300*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	require.NotNil(t, snap.ChatProcess)
	assert.Equal(t, int64(2), snap.ChatProcess.Count)
	assert.Equal(t, int64(1), snap.ChatProcess.Errors)
	assert.Equal(t, int64(400), snap.ChatProcess.TotalTimeMs)
	assert.Equal(t, 200.0, snap.ChatProcess.AvgTimeMs)
	assert.Equal(t, int64(100), snap.ChatProcess.MinTimeMs)
	assert.Equal(t, int64(300), snap.ChatProcess.MaxTimeMs)
	assert.Nil(t, snap.Recycle)
}

func TestRecordCallConcurrent(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordCall(metrics.OpRecycle, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap.Recycle)
	assert.Equal(t, int64(50), snap.Recycle.Count)
}
