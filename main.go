package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"member-archive/internal/archive"
	"member-archive/internal/config"
	"member-archive/internal/logging"
	"member-archive/internal/scrape"
	"member-archive/internal/store"
)

// One scrape-persist-export cycle for a single source group.
//
//	member-archive [target] [max]
//
// target defaults to @python, max to 100. Exit 0 on normal completion
// including empty batches; exit 1 when storage or the scrape source cannot
// be initialized.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	target := "@python"
	if len(os.Args) > 1 {
		target = os.Args[1]
	}

	max := 100
	if len(os.Args) > 2 {
		max, err = strconv.Atoi(os.Args[2])
		if err != nil || max < 1 {
			logger.Error("invalid_max_argument", "arg", os.Args[2])
			os.Exit(1)
		}
	}

	logger.Info("starting_scrape_cycle", "service", "member-archive", "target", target, "max", max)

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

	orch := scrape.NewOrchestrator(logger, st, engine, scrape.OrchestratorOptions{
		ExportDir:  cfg.ExportDir,
		ExportBase: cfg.ExportBase,
		Uploader:   archive.Build(logger, cfg.ArchiveEndpoint, cfg.ArchiveBucket, cfg.ArchiveKeysRaw),
	})

	// cancellation is honored before the batch call, not mid-batch
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	batch, err := orch.Run(ctx, target, max)
	if err != nil {
		logger.Error("scrape_cycle_failed", "target", target, "error", err)
		os.Exit(1)
	}

	total, err := st.Count(ctx)
	if err != nil {
		logger.Warn("final_count_failed", "error", err)
	}
	logger.Info("scrape_cycle_complete", "target", target, "scraped", len(batch), "total_in_store", total)
}
