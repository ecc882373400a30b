package app

import (
	"integrity-go/internal/integrity"
)

// runStatus maps the outcome of a scan to the status stored on its scan run.
// A scan that returned an error aborted; one that completed but could not
// enumerate every root is partial.
func runStatus(report *integrity.ScanReport, err error) string {
	switch {
	case err != nil || report == nil:
		return integrity.RunError
	case !report.Success():
		return integrity.RunPartial
	default:
		return integrity.RunSuccess
	}
}

// recordReport copies the report's counters onto run.
func recordReport(run *integrity.ScanRun, report *integrity.ScanReport, err error) {
	run.Status = runStatus(report, err)
	if report == nil {
		return
	}
	run.FilesSeen = int64(report.FilesSeen)
	run.Added = int64(len(report.Added))
	run.Corrupted = int64(len(report.Corrupted))
	run.Missing = int64(len(report.Missing))
	run.Skipped = int64(len(report.Skipped))
}
