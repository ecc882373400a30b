package integrity

import (
	"path/filepath"
	"time"
)

// Record is the persisted state of one tracked file.
// Identity is the (FilePath, FileName) pair; ID is the store's surrogate key.
type Record struct {
	ID         int64
	FilePath   string    // Directory containing the file, absolute
	FileName   string    // Base name within FilePath
	LastModify time.Time // Modification time observed at last write, second precision
	FileHash   string    // Hex SHA-512 of content at last write
	Removed    bool
	Corrupted  bool
}

// FullPath joins FilePath and FileName.
func (r *Record) FullPath() string {
	return filepath.Join(r.FilePath, r.FileName)
}

// Active reports whether the record is currently tracked (neither removed nor corrupted).
func (r *Record) Active() bool {
	return !r.Removed && !r.Corrupted
}

// RecordStatus selects records by flag state when listing.
type RecordStatus string

const (
	StatusAll       RecordStatus = "all"
	StatusActive    RecordStatus = "active"
	StatusCorrupted RecordStatus = "corrupted"
	StatusRemoved   RecordStatus = "removed"
)

// RecordFilter narrows ListRecords.
// An empty PathPrefix matches every record.
type RecordFilter struct {
	Status     RecordStatus
	PathPrefix string
	Limit      int
}

// ScanRun is the bookkeeping row persisted for each scan.
type ScanRun struct {
	ID         int64
	RunID      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "running", "success", "partial", "error" or "accepted"
	FilesSeen  int64
	Added      int64
	Corrupted  int64
	Missing    int64
	Skipped    int64
}

// Scan run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunPartial = "partial"
	RunError   = "error"

	// RunAccepted marks an operator accept rather than a scan. It still
	// advances the store version used for rollback detection.
	RunAccepted = "accepted"
)
