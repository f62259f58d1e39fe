package scrape

import (
	"context"
	"errors"
	"fmt"

	"member-archive/internal/models"
)

// Source is the external collaborator that produces raw member records.
// How it authenticates, paginates, or rate-limits is its own business; the
// orchestrator only requires that Scrape return a finite batch or fail.
// Scrape blocks until the whole batch is available; no partial results are
// visible to callers.
type Source interface {
	Connect(ctx context.Context) error
	Scrape(ctx context.Context, target string, max int) ([]models.Member, error)
	Close() error
}

// ErrNotConnected is returned by Scrape before a successful Connect.
var ErrNotConnected = errors.New("scrape source not connected")

// ConnectError means the source is unreachable or refused the credentials.
// It aborts the current run; there is no retry.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ScrapeError means one batch request failed. The run ends with an empty
// batch; the caller may re-invoke.
type ScrapeError struct {
	Target string
	Err    error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Target, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
