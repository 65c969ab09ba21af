// Package scheduler runs the poll loop (C11): a ticker that pulls a batch
// of unprocessed alerts and hands each to a bounded worker pool, coalescing
// ticks rather than queuing them when the previous poll is still running.
// Grounded on internal/backup.BackupService's ticker-loop shape.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/engine"
	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
)

// AlertProcessor is the subset of engine.AlertProcessor the scheduler needs,
// narrowed to an interface so tests can substitute a fake.
type AlertProcessor interface {
	Process(ctx context.Context, alert *types.Alert) bool
}

var _ AlertProcessor = (*engine.AlertProcessor)(nil)

// Scheduler polls the vector store for unprocessed alerts on a fixed
// interval and fans each batch out across a bounded worker pool. Only one
// poll runs at a time: a tick that arrives while a previous poll is still
// in flight is skipped, not queued (coalescing rule).
type Scheduler struct {
	Store     vectorstore.Store
	Processor AlertProcessor
	Metrics   *metrics.Registry

	interval    time.Duration
	batchSize   int
	concurrency int

	mu      sync.Mutex
	polling bool
}

func New(store vectorstore.Store, processor AlertProcessor, metricsReg *metrics.Registry, cfg config.SchedulerConfig) *Scheduler {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	concurrency := cfg.AlertConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Scheduler{
		Store:       store,
		Processor:   processor,
		Metrics:     metricsReg,
		interval:    interval,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// Run blocks, ticking at the configured interval until ctx is cancelled. It
// runs one poll immediately on entry rather than waiting for the first tick.
// Each tick runs in its own goroutine so a tick that fires while a poll is
// still in flight reaches the coalescing check in tick; on cancellation Run
// waits for the in-flight poll to finish before returning.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: starting, interval=%v batch_size=%d concurrency=%d", s.interval, s.batchSize, s.concurrency)

	var inFlight sync.WaitGroup
	startTick := func() {
		inFlight.Add(1)
		go func() {
			defer inFlight.Done()
			s.tick(ctx)
		}()
	}

	startTick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopping (%v)", ctx.Err())
			inFlight.Wait()
			return
		case <-ticker.C:
			startTick()
		}
	}
}

// tick runs one poll-and-process cycle if no other poll is in flight. The
// coalescing check and flag reset happen under mu so overlapping ticks race
// safely.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.polling {
		s.mu.Unlock()
		if s.Metrics != nil {
			s.Metrics.IncTickSkipped()
		}
		return
	}
	s.polling = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.polling = false
		s.mu.Unlock()
	}()

	if s.Metrics != nil {
		s.Metrics.IncTick()
	}

	alerts, err := s.Store.ListUnprocessed(ctx, s.batchSize)
	if err != nil {
		log.Printf("scheduler: list unprocessed failed: %v", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	log.Printf("scheduler: processing %d alerts", len(alerts))
	s.processBatch(ctx, alerts)
}

// processBatch fans alerts out across a bounded worker pool sized by
// s.concurrency, waiting for every alert to finish before returning.
func (s *Scheduler) processBatch(ctx context.Context, alerts []*types.Alert) {
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, alert := range alerts {
		alert := alert
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			ok := s.Processor.Process(ctx, alert)
			if !ok {
				log.Printf("scheduler: alert %s finished with degraded enrichment", alert.ID)
			}
		}()
	}

	wg.Wait()
}
