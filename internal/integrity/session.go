package integrity

import (
	"path/filepath"
	"strings"
	"sync"
)

// ScanSession accumulates the paths observed during one scan. Paths that sit
// below an unknown subtree (a root or directory that could not be enumerated)
// are excluded from the missing-file sweep. Safe for concurrent use.
type ScanSession struct {
	mu       sync.Mutex
	observed map[string]struct{}
	unknown  []string
}

// NewScanSession returns an empty session.
func NewScanSession() *ScanSession {
	return &ScanSession{observed: make(map[string]struct{})}
}

// Observe records a fully-qualified path. It returns false if the path was
// already observed in this session.
func (s *ScanSession) Observe(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.observed[path]; ok {
		return false
	}
	s.observed[path] = struct{}{}
	return true
}

// Observed reports whether path was seen in this session.
func (s *ScanSession) Observed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.observed[path]
	return ok
}

// MarkUnknown flags a directory whose contents could not be enumerated.
func (s *ScanSession) MarkUnknown(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unknown = append(s.unknown, filepath.Clean(dir))
}

// InUnknownSubtree reports whether path lies under a directory flagged by MarkUnknown.
func (s *ScanSession) InUnknownSubtree(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dir := range s.unknown {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Len returns the number of observed paths.
func (s *ScanSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observed)
}
