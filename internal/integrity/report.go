package integrity

import (
	"time"
)

// RootResult is the outcome of walking one configured root.
type RootResult struct {
	Root  string // As configured
	Path  string // Resolved absolute path; empty if resolution failed
	Files int    // Regular files processed (excluding ignored and skipped)
	Err   error  // Configuration or enumeration error for the root
}

// SkippedFile is a file whose state could not be determined this scan.
type SkippedFile struct {
	Path string
	Err  error
}

// ScanReport summarizes one scan.
type ScanReport struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	Roots          []RootResult
	FilesSeen      int
	Added          []string
	Reappeared     []string // Subset of Added: identities whose previous record was removed
	Unchanged      int
	Corrupted      []string
	StillCorrupted []string
	Missing        []string
	Ignored        int
	Skipped        []SkippedFile
	SweepDone      bool
}

// Success reports whether every root was enumerated and the sweep committed.
// Skipped files do not make a scan unsuccessful.
func (r *ScanReport) Success() bool {
	if !r.SweepDone {
		return false
	}
	for _, root := range r.Roots {
		if root.Err != nil {
			return false
		}
	}
	return true
}

// FailedRoots returns the results for roots that could not be scanned.
func (r *ScanReport) FailedRoots() []RootResult {
	var failed []RootResult
	for _, root := range r.Roots {
		if root.Err != nil {
			failed = append(failed, root)
		}
	}
	return failed
}
