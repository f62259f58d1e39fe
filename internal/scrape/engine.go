package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"member-archive/internal/logging"
	"member-archive/internal/models"
)

// Search patterns covering the member list. Issuing one bounded request per
// pattern walks past the per-query result cap the remote side enforces; the
// dedup set collapses the overlap between patterns.
var searchPatterns = []string{"", "a", "e", "i", "o", "u", "s", "t", "n", "r"}

const patternBatchSize = 50

// EngineConfig carries the scrape session credentials.
type EngineConfig struct {
	APIID       int
	APIHash     string
	SessionFile string
	QueryDelay  time.Duration
}

// Engine implements Source with pattern-based member enumeration. Member
// data is synthesized locally in place of live MTProto calls, so runs are
// deterministic and safe without credentials for a real account.
//
// One Engine is a single owned session handle: Connect before Scrape,
// Close on shutdown. Safe for concurrent Scrape calls across targets.
type Engine struct {
	log     *slog.Logger
	cfg     EngineConfig
	limiter *rate.Limiter

	mu        sync.Mutex
	connected bool
	// members already returned per target, so overlapping patterns
	// never produce duplicates within or across batches
	seen map[string]map[int64]bool
}

func NewEngine(log *slog.Logger, cfg EngineConfig) *Engine {
	qd := cfg.QueryDelay
	if qd <= 0 {
		qd = 100 * time.Millisecond
	}
	cfg.QueryDelay = qd

	return &Engine{
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(qd), 1),
		seen:    make(map[string]map[int64]bool),
	}
}

// Connect validates the credentials and opens the session. Calling Connect
// on an already-connected engine is a no-op.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected {
		return nil
	}

	if e.cfg.APIID <= 0 || e.cfg.APIHash == "" {
		return &ConnectError{Err: fmt.Errorf("missing api credentials")}
	}
	if err := ctx.Err(); err != nil {
		return &ConnectError{Err: err}
	}

	e.connected = true
	e.log.Info("engine_connected",
		"api_id", e.cfg.APIID,
		"api_hash", logging.MaskSecret(e.cfg.APIHash),
		"session_file", e.cfg.SessionFile,
	)
	return nil
}

// Scrape collects up to max unique members for target, one paced request per
// search pattern. The whole batch is returned at once or not at all.
func (e *Engine) Scrape(ctx context.Context, target string, max int) ([]models.Member, error) {
	e.mu.Lock()
	connected := e.connected
	e.mu.Unlock()

	if !connected {
		return nil, &ScrapeError{Target: target, Err: ErrNotConnected}
	}
	if max <= 0 {
		return nil, &ScrapeError{Target: target, Err: fmt.Errorf("max must be positive, got %d", max)}
	}

	e.log.Info("scrape_started", "target", target, "max", max)

	var members []models.Member
	for i, pattern := range searchPatterns {
		if len(members) >= max {
			break
		}

		// pacing between pattern queries; also the cancellation point
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &ScrapeError{Target: target, Err: err}
		}

		batch := e.queryPattern(target, i, max-len(members))
		members = append(members, batch...)

		e.log.Debug("pattern_query_done",
			"target", target,
			"pattern", pattern,
			"progress", fmt.Sprintf("%d/%d", i+1, len(searchPatterns)),
			"collected", len(members),
		)
	}

	e.log.Info("scrape_completed", "target", target, "unique_members", len(members))
	return members, nil
}

// queryPattern synthesizes one pattern's worth of members and filters out
// ids already returned for this target.
func (e *Engine) queryPattern(target string, patternIdx, limit int) []models.Member {
	if limit > patternBatchSize {
		limit = patternBatchSize
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seen[target] == nil {
		e.seen[target] = make(map[int64]bool)
	}

	pattern := searchPatterns[patternIdx]
	now := time.Now().Unix()

	var batch []models.Member
	for j := 0; len(batch) < limit && j < patternBatchSize; j++ {
		id := int64(patternIdx)*1000 + int64(j)
		if e.seen[target][id] {
			continue
		}
		e.seen[target][id] = true

		m := models.Member{
			ID:          id,
			Username:    fmt.Sprintf("user_%s_%d", pattern, j),
			FirstName:   fmt.Sprintf("User%d", j),
			LastName:    fmt.Sprintf("Last%d", j),
			IsPremium:   j%10 == 0,
			LastOnline:  now,
			SourceGroup: target,
		}
		if j%5 == 0 {
			m.Phone = fmt.Sprintf("+1%010d", j)
		}
		batch = append(batch, m)
	}
	return batch
}

// Close releases the session. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected {
		e.connected = false
		e.log.Info("engine_closed")
	}
	return nil
}
