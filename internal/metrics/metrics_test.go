package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.Inc(ExtractSuccesses)
	r.Inc(ExtractSuccesses)
	r.Add(OutliersDetected, 3)
	r.Add(OutliersDetected, -1)

	assert.Equal(t, 2.0, r.Counter(ExtractSuccesses))
	assert.Equal(t, 3.0, r.Counter(OutliersDetected))
	assert.Zero(t, r.Counter("missing"))
}

func TestRegistryGaugesAndSummaries(t *testing.T) {
	r := NewRegistry()

	r.Set(RecordsProcessed, 10)
	r.Set(RecordsProcessed, 4)
	r.Observe(APIResponseTime, 2*time.Second)
	r.Observe(APIResponseTime, time.Second)

	snap := r.Snapshot()
	assert.Equal(t, 4.0, snap.Gauges[RecordsProcessed])

	s := snap.Summaries[APIResponseTime]
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 3.0, s.Sum, 1e-9)
	assert.InDelta(t, 1.0, s.Last, 1e-9)
	assert.InDelta(t, 2.0, s.Max, 1e-9)

	assert.Equal(t, []string{APIResponseTime, RecordsProcessed}, snap.Names())
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Inc(PipelineRuns)
			_ = r.Snapshot()
		}()
	}
	wg.Wait()

	require.Equal(t, 50.0, r.Counter(PipelineRuns))
}

func TestTimer(t *testing.T) {
	r := NewRegistry()

	stop := Timer(r, LoadProcessingTime)
	stop()

	assert.Equal(t, 1, r.Snapshot().Summaries[LoadProcessingTime].Count)
}
