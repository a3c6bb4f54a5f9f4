// Package repo holds the storage and upstream-client layer: where records
// come from, where run results land, and the secondary classifier feed.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

var (
	// ErrNotFound is returned when a window result or thread does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRunInProgress means another run holds the window lock. Callers may
	// retry after the holder finishes or its lock TTL lapses.
	ErrRunInProgress = errors.New("correlation run already in progress for window")
)

// RecordSource supplies the records falling inside a correlation window.
type RecordSource interface {
	FetchRecords(ctx context.Context, start, end time.Time) ([]models.Record, error)
}

// RecordSink accepts records pushed by collectors for later correlation.
// Records sharing an id replace the previous version.
type RecordSink interface {
	PutRecords(records ...models.Record)
}

// SecondarySignal is an optional independent classifier consulted per
// record. A nil tier with nil error means the signal abstained.
type SecondarySignal interface {
	ClassifyTier(ctx context.Context, rec models.Record) (*models.Tier, error)
}

// ResultStore persists run output and arbitrates concurrent runs.
type ResultStore interface {
	// ReplaceWindowResult atomically swaps the window's result set. Readers
	// observe either the previous complete result or the new one.
	ReplaceWindowResult(ctx context.Context, windowKey string, result models.CorrelateResult) error
	WindowResult(ctx context.Context, windowKey string) (models.CorrelateResult, error)
	Thread(ctx context.Context, threadID string) (models.Thread, error)

	// AcquireRunLock claims the window for holder, failing fast with
	// ErrRunInProgress when a different holder has it.
	AcquireRunLock(ctx context.Context, windowKey, holder string, ttl time.Duration) error
	ReleaseRunLock(ctx context.Context, windowKey, holder string) error

	// AppendDisagreement records a rules-vs-secondary mismatch. Re-appending
	// the same (record id, run id) pair is a no-op.
	AppendDisagreement(ctx context.Context, rec models.DisagreementRecord) error
	Disagreements(ctx context.Context, runID string) ([]models.DisagreementRecord, error)
}
