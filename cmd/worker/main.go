package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"member-archive/internal/archive"
	"member-archive/internal/config"
	"member-archive/internal/logging"
	"member-archive/internal/scrape"
	"member-archive/internal/store"
)

// Fan-out worker: drives one orchestration cycle per configured source group
// on a bounded pool. Each group's key space in the store is disjoint, so the
// cycles are safe to run in parallel.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "member-archive-worker", "groups", len(cfg.SourceGroups))

	if len(cfg.SourceGroups) == 0 {
		logger.Error("no_source_groups", "msg", "set SOURCE_GROUPS to a comma-separated list of targets")
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("store_open_failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	engine := scrape.NewEngine(logger, scrape.EngineConfig{
		APIID:       cfg.TelegramAPIID,
		APIHash:     cfg.TelegramAPIHash,
		SessionFile: cfg.SessionFile,
		QueryDelay:  time.Duration(cfg.ScrapeDelayMs) * time.Millisecond,
	})
	defer engine.Close()

	uploader := archive.Build(logger, cfg.ArchiveEndpoint, cfg.ArchiveBucket, cfg.ArchiveKeysRaw)

	fanOut := scrape.NewFanOut(logger, func() *scrape.Orchestrator {
		return scrape.NewOrchestrator(logger, st, engine, scrape.OrchestratorOptions{
			ExportDir:  cfg.ExportDir,
			ExportBase: cfg.ExportBase,
			Uploader:   uploader,
		})
	}, cfg.MaxPerGroup)

	fanOut.Start(cfg.WorkerCount)

	enqueueAll := func() {
		for _, group := range cfg.SourceGroups {
			if !fanOut.Enqueue(group) {
				logger.Warn("group_enqueue_dropped", "group", group)
			}
		}
	}
	enqueueAll()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	if cfg.ScrapeIntervalMin > 0 {
		ticker := time.NewTicker(time.Duration(cfg.ScrapeIntervalMin) * time.Minute)
		defer ticker.Stop()

		logger.Info("worker_started", "interval_min", cfg.ScrapeIntervalMin, "workers", cfg.WorkerCount)

	loop:
		for {
			select {
			case <-ticker.C:
				logger.Info("scheduling_scrape_pass", "groups", len(cfg.SourceGroups), "queue_depth", fanOut.QueueDepth())
				enqueueAll()
			case <-stop:
				break loop
			}
		}
	} else {
		// single pass: wait for the queue to drain, then leave
		logger.Info("worker_started", "mode", "single_pass", "workers", cfg.WorkerCount)
		for fanOut.QueueDepth() > 0 {
			select {
			case <-stop:
				logger.Info("interrupted")
				fanOut.Stop()
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}

	logger.Info("shutting_down")
	fanOut.Stop()
	logger.Info("worker_stopped")
}
