package metrics_test

import (
	"sync"
	"testing"

	"github.com/scrypster/aegis/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_AlertResults(t *testing.T) {
	r := metrics.New()
	r.IncAlertResult(true)
	r.IncAlertResult(true)
	r.IncAlertResult(false)

	snap := r.Snapshot()
	assert.Equal(t, uint64(3), snap.AlertsSeen)
	assert.Equal(t, uint64(2), snap.AlertsOK)
	assert.Equal(t, uint64(1), snap.AlertsFailed)
}

func TestRegistry_TickCoalescing(t *testing.T) {
	r := metrics.New()
	r.IncTick()
	r.IncTickSkipped()
	r.IncTickSkipped()

	snap := r.Snapshot()
	assert.Equal(t, uint64(1), snap.Ticks)
	assert.Equal(t, uint64(2), snap.TicksSkipped)
}

func TestRegistry_ConcurrentIncrements(t *testing.T) {
	r := metrics.New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.IncRetrievalTask(true)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(100), r.Snapshot().RetrievalOK)
}

func TestRegistry_EdgesSkippedIgnoresNonPositive(t *testing.T) {
	r := metrics.New()
	r.AddEdgesSkipped(0)
	r.AddEdgesSkipped(-3)
	r.AddEdgesSkipped(5)

	assert.Equal(t, uint64(5), r.Snapshot().EdgesSkipped)
}

func TestRegistry_TokensInIgnoresNonPositive(t *testing.T) {
	r := metrics.New()
	r.AddTokensIn(0)
	r.AddTokensIn(-10)
	r.AddTokensIn(42)

	assert.Equal(t, uint64(42), r.Snapshot().TokensIn)
}
