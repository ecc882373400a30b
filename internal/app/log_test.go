package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLineHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "run-123",
			level:   slog.LevelInfo,
			message: "scan started",
			want:    "2024-06-15T14:30:45Z\tINFO\trun-123\tscan started\n",
		},
		{
			name:    "debug level",
			runID:   "run-456",
			level:   slog.LevelDebug,
			message: "walking root",
			want:    "2024-06-15T14:30:45Z\tDEBUG\trun-456\twalking root\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelError,
			message: "file corrupted",
			attrs:   []slog.Attr{slog.String("path", "/docs/file.txt"), slog.Int64("id", 42)},
			want:    "2024-06-15T14:30:45Z\tERROR\trun-789\tfile corrupted\tpath=/docs/file.txt\tid=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newLineHandler(&buf, tt.runID, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLineHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newLineHandler(&buf, "run-1", slog.LevelInfo)

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "engine")}).(*lineHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "file added", 0)
	r.AddAttrs(slog.String("path", "/a"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=engine") {
		t.Errorf("expected pre-set attr component=engine, got: %q", got)
	}
	if !strings.Contains(got, "path=/a") {
		t.Errorf("expected record attr path=/a, got: %q", got)
	}
}

func TestLineHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	h := newLineHandler(&bytes.Buffer{}, "run-1", slog.LevelInfo)
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*lineHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestLineHandler_Enabled(t *testing.T) {
	h := newLineHandler(&bytes.Buffer{}, "", slog.LevelInfo)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(DEBUG) = true at INFO level")
	}
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestLineHandler_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLineHandler(&buf, "run", slog.LevelInfo))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				logger.Info("file added", "worker", i, "path", "/some/long/path/name.txt")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 500 {
		t.Fatalf("lines = %d, want 500", len(lines))
	}
	for _, line := range lines {
		if strings.Count(line, "\t") != 5 {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-run", slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-run\thello\tk=v\n") {
		t.Errorf("log file = %q", data)
	}
}
