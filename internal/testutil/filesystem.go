package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ifs "integrity-go/internal/fs"
	"integrity-go/internal/integrity"
)

// MockHome is what "~" expands to in the mock filesystem.
const MockHome = "/home/test"

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Parent directories are created implicitly. Safe for concurrent use.
type MockFilesystemManager struct {
	mu       sync.Mutex
	files    map[string]*MockFile
	openErr  map[string]error
	dirErr   map[string]error
	onOpen   map[string][]byte // content swapped in after the next Open
	ignore   *ifs.IgnoreMatcher
	baseTime time.Time
	opens    int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    map[string]*MockFile{"/": {Permissions: 0755, IsDirectory: true}},
		openErr:  make(map[string]error),
		dirErr:   make(map[string]error),
		onOpen:   make(map[string][]byte),
		ignore:   ifs.NewIgnoreMatcher(nil),
		baseTime: ScanEpoch,
	}
}

// AddFile adds or replaces a file. Replacing a file bumps its mtime by a second.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	modTime := m.baseTime
	if existing, ok := m.files[path]; ok {
		modTime = existing.ModTime.Add(time.Second)
	}
	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// Corrupt replaces content without touching mtime, the way bit rot would.
func (m *MockFilesystemManager) Corrupt(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path]
	if !ok {
		panic("testutil: Corrupt on missing file " + path)
	}
	file.Content = content
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addParents(path)
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     m.baseTime,
		IsDirectory: true,
	}
}

// Remove deletes a file, or a directory and everything below it.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.files, p)
		}
	}
}

// FailOpen makes every Open of path fail with err.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr[path] = err
}

// FailDir makes Walk report dir as unreadable with err and skip its contents.
func (m *MockFilesystemManager) FailDir(dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirErr[dir] = err
}

// ChangeOnOpen swaps path's content (and bumps its mtime) right after the
// next Open, simulating a writer racing the scan.
func (m *MockFilesystemManager) ChangeOnOpen(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpen[path] = content
}

// SetIgnorePatterns installs ignore patterns, matched relative to the walked root.
func (m *MockFilesystemManager) SetIgnorePatterns(patterns []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignore = ifs.NewIgnoreMatcher(patterns)
}

// Opens returns how many times Open has succeeded.
func (m *MockFilesystemManager) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{Permissions: 0755, ModTime: m.baseTime, IsDirectory: true}
		}
		if dir == "/" || dir == "." {
			return
		}
	}
}

func (m *MockFilesystemManager) Expand(rawPath string) (string, error) {
	if rawPath == "" {
		return "", fmt.Errorf("empty path")
	}
	if rawPath == "~" || strings.HasPrefix(rawPath, "~/") {
		rawPath = filepath.Join(MockHome, strings.TrimPrefix(rawPath, "~"))
	}
	return filepath.Abs(rawPath)
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*integrity.Path, error) {
	absPath, err := m.Expand(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", absPath, fs.ErrNotExist)
	}
	return integrity.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

// Walk visits files in lexical order.
func (m *MockFilesystemManager) Walk(ctx context.Context, root *integrity.Path, fn integrity.WalkFunc) error {
	if !root.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root.String())
	}

	m.mu.Lock()
	if err, ok := m.dirErr[root.String()]; ok {
		m.mu.Unlock()
		return fn(root, err)
	}

	type entry struct {
		path *integrity.Path
		err  error
	}
	var entries []entry
	var failed []string
	var names []string
	for p := range m.files {
		if strings.HasPrefix(p, strings.TrimSuffix(root.String(), "/")+"/") {
			names = append(names, p)
		}
	}
	sort.Strings(names)

	for _, p := range names {
		if under(p, failed) {
			continue
		}
		file := m.files[p]
		if err, ok := m.dirErr[p]; ok && file.IsDirectory {
			failed = append(failed, p)
			entries = append(entries, entry{path: integrity.NewPath(p, true, nil), err: err})
			continue
		}
		if file.IsDirectory {
			continue
		}
		entries = append(entries, entry{path: integrity.NewPath(p, false, newMockFileInfo(p, file))})
	}
	m.mu.Unlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e.path, e.err); err != nil {
			return err
		}
	}
	return nil
}

func under(path string, dirs []string) bool {
	for _, d := range dirs {
		if strings.HasPrefix(path, d+"/") {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) Open(path *integrity.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.openErr[path.String()]; ok {
		return nil, err
	}
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path.String(), fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	m.opens++

	content := file.Content
	if next, ok := m.onOpen[path.String()]; ok {
		delete(m.onOpen, path.String())
		m.files[path.String()] = &MockFile{
			Content:     next,
			Permissions: file.Permissions,
			ModTime:     file.ModTime.Add(time.Second),
		}
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MockFilesystemManager) Stat(path *integrity.Path) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", path.String(), fs.ErrNotExist)
	}
	return newMockFileInfo(path.String(), file), nil
}

func (m *MockFilesystemManager) IsIgnored(path *integrity.Path, root string) bool {
	rel, err := filepath.Rel(root, path.String())
	if err != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignore.Match(rel)
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, file *MockFile) *mockFileInfo {
	mode := file.Permissions
	if file.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    mode,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ integrity.FilesystemManager = (*MockFilesystemManager)(nil)
