package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine() *Engine {
	return NewEngine(testLogger(), EngineConfig{
		APIID:      123456,
		APIHash:    "0123456789abcdef",
		QueryDelay: time.Millisecond,
	})
}

func TestEngine_ConnectRequiresCredentials(t *testing.T) {
	e := NewEngine(testLogger(), EngineConfig{})

	err := e.Connect(context.Background())
	if err == nil {
		t.Fatal("expected connect to fail without credentials")
	}
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConnectError, got %T", err)
	}
}

func TestEngine_ConnectIdempotent(t *testing.T) {
	e := testEngine()

	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if err := e.Connect(context.Background()); err != nil {
		t.Errorf("second connect should be a no-op, got %v", err)
	}
}

func TestEngine_ScrapeBeforeConnect(t *testing.T) {
	e := testEngine()

	_, err := e.Scrape(context.Background(), "@golang", 10)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestEngine_ScrapeBoundedAndUnique(t *testing.T) {
	e := testEngine()
	ctx := context.Background()
	if err := e.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	members, err := e.Scrape(ctx, "@golang", 120)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if len(members) == 0 || len(members) > 120 {
		t.Fatalf("batch size %d out of bounds (0, 120]", len(members))
	}

	seen := make(map[int64]bool)
	for _, m := range members {
		if seen[m.ID] {
			t.Errorf("duplicate member id %d in batch", m.ID)
		}
		seen[m.ID] = true
		if m.SourceGroup != "@golang" {
			t.Errorf("member %d has source_group %q", m.ID, m.SourceGroup)
		}
	}
}

func TestEngine_ScrapeDedupAcrossCalls(t *testing.T) {
	e := testEngine()
	ctx := context.Background()
	if err := e.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	first, err := e.Scrape(ctx, "@golang", 30)
	if err != nil {
		t.Fatalf("first scrape: %v", err)
	}

	second, err := e.Scrape(ctx, "@golang", 30)
	if err != nil {
		t.Fatalf("second scrape: %v", err)
	}

	ids := make(map[int64]bool, len(first))
	for _, m := range first {
		ids[m.ID] = true
	}
	for _, m := range second {
		if ids[m.ID] {
			t.Errorf("member %d returned again for the same target", m.ID)
		}
	}
}

func TestEngine_ScrapeTargetsIndependent(t *testing.T) {
	e := testEngine()
	ctx := context.Background()
	if err := e.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	a, err := e.Scrape(ctx, "@first", 10)
	if err != nil {
		t.Fatalf("scrape @first: %v", err)
	}
	b, err := e.Scrape(ctx, "@second", 10)
	if err != nil {
		t.Fatalf("scrape @second: %v", err)
	}

	// the dedup set is per target, so the second target starts fresh
	if len(a) != 10 || len(b) != 10 {
		t.Errorf("expected 10 members per target, got %d and %d", len(a), len(b))
	}
}

func TestEngine_ScrapeHonorsCancellation(t *testing.T) {
	e := testEngine()
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Scrape(ctx, "@golang", 10)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	var se *ScrapeError
	if !errors.As(err, &se) {
		t.Errorf("expected ScrapeError, got %T", err)
	}
}

func TestEngine_ScrapeRejectsNonPositiveMax(t *testing.T) {
	e := testEngine()
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := e.Scrape(context.Background(), "@golang", 0); err == nil {
		t.Error("expected error for max = 0")
	}
}
