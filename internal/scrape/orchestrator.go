package scrape

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"member-archive/internal/archive"
	"member-archive/internal/export"
	"member-archive/internal/models"
	"member-archive/internal/store"
)

// State of one orchestration cycle. Both terminal outcomes land back in
// StateIdle; a failed cycle must be restarted externally, there is no retry
// transition.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateScraping
	StateExporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateScraping:
		return "scraping"
	case StateExporting:
		return "exporting"
	default:
		return "unknown"
	}
}

// Orchestrator sequences one scrape-persist-export cycle for a single source
// group. It owns no long-lived goroutines; callers drive it.
type Orchestrator struct {
	log        *slog.Logger
	store      *store.Store
	source     Source
	exportDir  string
	exportBase string
	uploader   archive.Uploader // optional
	state      atomic.Int32
}

type OrchestratorOptions struct {
	ExportDir  string
	ExportBase string
	Uploader   archive.Uploader
}

func NewOrchestrator(log *slog.Logger, st *store.Store, src Source, opts OrchestratorOptions) *Orchestrator {
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.ExportBase == "" {
		opts.ExportBase = "scrape_results"
	}
	return &Orchestrator{
		log:        log,
		store:      st,
		source:     src,
		exportDir:  opts.ExportDir,
		exportBase: opts.ExportBase,
		uploader:   opts.Uploader,
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Run executes one cycle: scrape up to max members of group, persist each in
// arrival order, export the batch when non-empty. The returned batch may be
// smaller than max.
//
// A connect failure is returned to the caller and aborts the run. A scrape
// failure is contained: it logs, persists nothing, exports nothing, and
// returns an empty batch with a nil error. A single failed upsert is logged
// and does not abort the batch.
func (o *Orchestrator) Run(ctx context.Context, group string, max int) ([]models.Member, error) {
	o.setState(StateConnecting)
	defer o.setState(StateIdle)

	if err := o.source.Connect(ctx); err != nil {
		o.log.Error("source_connect_failed", "group", group, "error", err)
		return nil, err
	}
	o.setState(StateConnected)

	// last chance to honor cancellation before the blocking batch call
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.setState(StateScraping)
	batch, err := o.source.Scrape(ctx, group, max)
	if err != nil {
		o.log.Warn("scrape_failed", "group", group, "error", err)
		return nil, nil
	}

	persisted := 0
	for _, m := range batch {
		m.SourceGroup = group
		if err := o.store.Upsert(ctx, m); err != nil {
			o.log.Warn("member_persist_failed", "group", group, "member_id", m.ID, "error", err)
			continue
		}
		persisted++
	}

	total, err := o.store.Count(ctx)
	if err != nil {
		o.log.Warn("count_failed", "error", err)
	}
	o.log.Info("batch_persisted",
		"group", group,
		"scraped", len(batch),
		"persisted", persisted,
		"total_in_store", total,
	)

	if len(batch) > 0 {
		o.setState(StateExporting)
		o.export(ctx, group, batch)
	}

	return batch, nil
}

// export writes both encodings and optionally ships them to the archive
// bucket. Export problems are logged, never fatal to the cycle: the batch is
// already durable in the store.
func (o *Orchestrator) export(ctx context.Context, group string, batch []models.Member) {
	jsonPath, csvPath, err := export.WriteFiles(o.exportDir, o.exportBase, batch)
	if err != nil {
		o.log.Error("export_write_failed", "group", group, "error", err)
		return
	}
	o.log.Info("batch_exported", "group", group, "json_file", jsonPath, "csv_file", csvPath)

	if o.uploader == nil {
		return
	}
	for path, contentType := range map[string]string{
		jsonPath: "application/json",
		csvPath:  "text/csv",
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			o.log.Warn("export_upload_read_failed", "file", path, "error", err)
			continue
		}
		url, err := o.uploader.UploadExport(ctx, filepath.Base(path), data, contentType)
		if err != nil {
			o.log.Warn("export_upload_failed", "file", path, "error", err)
			continue
		}
		o.log.Info("export_uploaded", "file", path, "url", url)
	}
}
