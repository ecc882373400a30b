package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"integrity-go/internal/integrity"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	patterns []string

	mu       sync.Mutex
	matchers map[string]*IgnoreMatcher // by root
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignorePatterns apply under every root, in addition to each root's .integrityignore.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		patterns: ignorePatterns,
		matchers: make(map[string]*IgnoreMatcher),
	}
}

// Expand replaces a leading "~" with the user's home directory and makes the path absolute.
func (m *OSFilesystemManager) Expand(rawPath string) (string, error) {
	if rawPath == "" {
		return "", errors.New("empty path")
	}
	if rawPath == "~" || strings.HasPrefix(rawPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("finding home directory: %w", err)
		}
		rawPath = filepath.Join(home, strings.TrimPrefix(rawPath, "~"))
	}

	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return absPath, nil
}

// Resolve validates a raw path and returns a Path object named by its
// canonical location. A symlink to a directory is followed, so a linked root
// is scanned at its target. Other symlinks are rejected.
func (m *OSFilesystemManager) Resolve(rawPath string) (*integrity.Path, error) {
	absPath, err := m.Expand(rawPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("following symlink %s: %w", absPath, err)
		}
		if !target.IsDir() {
			return nil, fmt.Errorf("symlinks to files not supported: %s", absPath)
		}
		info = target
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return integrity.NewPath(Canonicalize(absPath), info.IsDir(), info), nil
}

// Canonicalize resolves every symlink in an absolute path. Trailing
// components that do not exist yet are kept as given under their resolved
// parent, so a store's -wal file maps to the same directory as the store.
func Canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	parent := filepath.Dir(absPath)
	if parent == absPath {
		return absPath
	}
	return filepath.Join(Canonicalize(parent), filepath.Base(absPath))
}

// Walk calls fn for every regular file under root. Symlinks below the root
// and special files are not followed or reported. An unreadable directory is
// reported to fn once and its subtree skipped.
func (m *OSFilesystemManager) Walk(ctx context.Context, root *integrity.Path, fn integrity.WalkFunc) error {
	if !root.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root.String())
	}

	return filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == root.String() {
				return fn(root, err)
			}
			if cbErr := fn(integrity.NewPath(p, true, nil), err); cbErr != nil {
				return cbErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Removed since the directory was read.
				return nil
			}
			return fn(integrity.NewPath(p, false, nil), fmt.Errorf("stat %s: %w", p, err))
		}
		return fn(integrity.NewPath(p, false, info), nil)
	})
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *integrity.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *integrity.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// IsIgnored reports whether path matches the configured patterns or the
// root's .integrityignore.
func (m *OSFilesystemManager) IsIgnored(path *integrity.Path, root string) bool {
	rel, err := filepath.Rel(root, path.String())
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return m.matcher(root).Match(rel)
}

// matcher returns the cached matcher for root, reading its ignore file on first use.
// An unreadable ignore file falls back to the configured patterns.
func (m *OSFilesystemManager) matcher(root string) *IgnoreMatcher {
	m.mu.Lock()
	defer m.mu.Unlock()

	if im, ok := m.matchers[root]; ok {
		return im
	}

	patterns := append([]string{}, defaultIgnorePatterns...)
	patterns = append(patterns, m.patterns...)
	if filePatterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName)); err == nil {
		patterns = append(patterns, filePatterns...)
	}

	im := NewIgnoreMatcher(patterns)
	m.matchers[root] = im
	return im
}

// Compile-time check that OSFilesystemManager implements integrity.FilesystemManager interface
var _ integrity.FilesystemManager = (*OSFilesystemManager)(nil)
