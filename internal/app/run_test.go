package app

import (
	"errors"
	"testing"

	"integrity-go/internal/integrity"
)

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name   string
		report *integrity.ScanReport
		err    error
		want   string
	}{
		{
			name:   "success",
			report: &integrity.ScanReport{SweepDone: true, Roots: []integrity.RootResult{{Root: "/a"}}},
			want:   integrity.RunSuccess,
		},
		{
			name: "failed root is partial",
			report: &integrity.ScanReport{SweepDone: true, Roots: []integrity.RootResult{
				{Root: "/a"}, {Root: "/b", Err: integrity.ErrNotDirectory},
			}},
			want: integrity.RunPartial,
		},
		{
			name:   "aborted scan",
			report: &integrity.ScanReport{},
			err:    errors.New("disk I/O error"),
			want:   integrity.RunError,
		},
		{
			name: "no report",
			want: integrity.RunError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runStatus(tt.report, tt.err); got != tt.want {
				t.Errorf("runStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordReport(t *testing.T) {
	run := &integrity.ScanRun{ID: 7, Status: integrity.RunRunning}
	report := &integrity.ScanReport{
		SweepDone: true,
		FilesSeen: 10,
		Added:     []string{"/a", "/b"},
		Corrupted: []string{"/c"},
		Missing:   []string{"/d", "/e", "/f"},
		Skipped:   []integrity.SkippedFile{{Path: "/g"}},
	}

	recordReport(run, report, nil)

	if run.Status != integrity.RunSuccess {
		t.Errorf("Status = %q, want success", run.Status)
	}
	if run.FilesSeen != 10 || run.Added != 2 || run.Corrupted != 1 || run.Missing != 3 || run.Skipped != 1 {
		t.Errorf("counters = %+v", run)
	}
}
