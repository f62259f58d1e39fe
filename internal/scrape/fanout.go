package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FanOut drives orchestration cycles for many source groups in parallel.
// Each worker owns its own Orchestrator so the per-cycle state gauges never
// interleave; the store and source handles behind them are shared and
// concurrency-safe. Fan-out is safe because each group targets a disjoint
// key space in the store.
type FanOut struct {
	log         *slog.Logger
	newCycle    func() *Orchestrator
	maxPerGroup int
	jobs        chan string
	workers     []*fanOutWorker
	wg          sync.WaitGroup
	mu          sync.Mutex
}

type fanOutWorker struct {
	id       int
	stopChan chan bool
}

const cycleTimeout = 5 * time.Minute

func NewFanOut(log *slog.Logger, newCycle func() *Orchestrator, maxPerGroup int) *FanOut {
	if maxPerGroup <= 0 {
		maxPerGroup = 100
	}
	return &FanOut{
		log:         log,
		newCycle:    newCycle,
		maxPerGroup: maxPerGroup,
		jobs:        make(chan string, 1000),
	}
}

// Enqueue schedules one cycle for group. Returns false when the queue is
// saturated; the caller decides whether to drop or retry later.
func (f *FanOut) Enqueue(group string) bool {
	select {
	case f.jobs <- group:
		return true
	default:
		f.log.Warn("fanout_queue_full", "group", group)
		return false
	}
}

func (f *FanOut) Start(workerCount int) {
	if workerCount < 1 {
		workerCount = 4
	}
	if workerCount > 32 {
		workerCount = 32
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		w := &fanOutWorker{
			id:       i + 1,
			stopChan: make(chan bool, 1),
		}
		f.workers = append(f.workers, w)

		f.wg.Add(1)
		go f.runWorker(w)
	}

	f.log.Info("fanout_workers_started", "count", workerCount)
}

func (f *FanOut) runWorker(w *fanOutWorker) {
	defer f.wg.Done()

	orch := f.newCycle()
	for {
		select {
		case group := <-f.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
			batch, err := orch.Run(ctx, group, f.maxPerGroup)
			cancel()

			if err != nil {
				f.log.Warn("fanout_cycle_failed", "worker_id", w.id, "group", group, "error", err)
				continue
			}
			f.log.Info("fanout_cycle_done", "worker_id", w.id, "group", group, "members", len(batch))
		case <-w.stopChan:
			f.log.Info("fanout_worker_stopped", "worker_id", w.id)
			return
		}
	}
}

func (f *FanOut) Stop() {
	f.mu.Lock()
	for _, w := range f.workers {
		select {
		case w.stopChan <- true:
		default:
		}
	}
	f.mu.Unlock()

	f.wg.Wait()
	f.log.Info("fanout_stopped")
}

// QueueDepth reports pending cycles, for the worker health log.
func (f *FanOut) QueueDepth() int {
	return len(f.jobs)
}
