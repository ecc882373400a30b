package integrity

import (
	"context"
	"iter"
)

// RecordStore is the durable table of file records.
// Scan mutations go through a StoreTx; the remaining methods serve the
// application layer outside of a scan.
type RecordStore interface {
	// Begin opens a transaction. Only one writer may hold a transaction at a time.
	Begin(ctx context.Context) (StoreTx, error)

	// ListRecords returns records matching the filter, ordered by path then id.
	ListRecords(ctx context.Context, filter RecordFilter) ([]*Record, error)

	// Scan run bookkeeping

	CreateScanRun(ctx context.Context, runID string) (*ScanRun, error)
	FinishScanRun(ctx context.Context, run *ScanRun) error
	ListScanRuns(ctx context.Context, limit int) ([]*ScanRun, error)
	// MaxScanRunID is the store's version marker; 0 for a fresh store.
	MaxScanRunID(ctx context.Context) (int64, error)

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(destPath string) error

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	Close() error
}

// StoreTx is one transaction over the record store. The engine opens one per
// root walk and one for the missing-file sweep.
type StoreTx interface {
	// Lookup returns the record for an identity: the active one if present,
	// otherwise the most recent flagged one. Returns nil, nil if never seen.
	Lookup(ctx context.Context, filePath, fileName string) (*Record, error)

	// Insert adds a new active record. It fails with ErrDuplicateActive if
	// the identity already has an active record.
	Insert(ctx context.Context, rec *Record) (*Record, error)

	// MarkCorrupted sets the corrupted flag. Idempotent.
	MarkCorrupted(ctx context.Context, id int64) error

	// MarkRemoved sets the removed flag. Idempotent.
	MarkRemoved(ctx context.Context, id int64) error

	// IterateActive lazily yields records with neither flag set, in no particular order.
	// The store must not be mutated through this transaction until iteration ends.
	IterateActive(ctx context.Context) iter.Seq2[*Record, error]

	Commit() error
	Rollback() error
}
