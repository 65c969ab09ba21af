package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/internal/scheduler"
	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

type countingProcessor struct {
	mu        sync.Mutex
	processed []string
	block     chan struct{}
}

func (p *countingProcessor) Process(ctx context.Context, alert *types.Alert) bool {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.processed = append(p.processed, alert.ID)
	p.mu.Unlock()
	return true
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func alertWithID(id string) *types.Alert {
	return &types.Alert{ID: id, Rule: types.Rule{ID: 1, Description: "test"}, Agent: types.Agent{ID: "A1"}}
}

func TestScheduler_Run_ProcessesUnprocessedAlertsImmediately(t *testing.T) {
	store := vectorstore.NewFake()
	store.Seed(alertWithID("a1"), alertWithID("a2"))
	proc := &countingProcessor{}
	reg := metrics.New()

	sched := scheduler.New(store, proc, reg, config.SchedulerConfig{IntervalSeconds: 3600, BatchSize: 10, AlertConcurrency: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	assert.Equal(t, 2, proc.count())
	assert.Equal(t, uint64(1), reg.Snapshot().Ticks)
}

func TestScheduler_CoalescesOverlappingTicks(t *testing.T) {
	store := vectorstore.NewFake()
	store.Seed(alertWithID("a1"))
	block := make(chan struct{})
	proc := &countingProcessor{block: block}
	reg := metrics.New()

	sched := scheduler.New(store, proc, reg, config.SchedulerConfig{IntervalSeconds: 1, BatchSize: 10, AlertConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	time.Sleep(1200 * time.Millisecond)
	cancel()
	close(block)
	wg.Wait()

	snap := reg.Snapshot()
	assert.GreaterOrEqual(t, snap.TicksSkipped, uint64(1))
}

func TestScheduler_EmptyBatchDoesNotInvokeProcessor(t *testing.T) {
	store := vectorstore.NewFake()
	proc := &countingProcessor{}
	reg := metrics.New()

	sched := scheduler.New(store, proc, reg, config.SchedulerConfig{IntervalSeconds: 3600, BatchSize: 10, AlertConcurrency: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	assert.Equal(t, 0, proc.count())
}

func TestScheduler_RespectsConcurrencyLimit(t *testing.T) {
	store := vectorstore.NewFake()
	for i := 0; i < 6; i++ {
		store.Seed(alertWithID("id" + string(rune('a'+i))))
	}
	var inFlight int32
	var maxInFlight int32
	proc := processorFunc(func(ctx context.Context, alert *types.Alert) bool {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return true
	})
	reg := metrics.New()
	sched := scheduler.New(store, proc, reg, config.SchedulerConfig{IntervalSeconds: 3600, BatchSize: 10, AlertConcurrency: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

type processorFunc func(ctx context.Context, alert *types.Alert) bool

func (f processorFunc) Process(ctx context.Context, alert *types.Alert) bool { return f(ctx, alert) }
