package integrity

import (
	"io/fs"
	"path/filepath"
)

// Path represents a validated filesystem path with cached metadata.
// Path objects are created by FilesystemManager.Resolve() or during a walk,
// always holding an absolute, cleaned path.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

// String returns the absolute path as a string.
func (p *Path) String() string {
	return p.absPath
}

// IsDir returns true if this path points to a directory.
func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the cached file info from when the path was resolved or walked.
func (p *Path) Info() fs.FileInfo {
	return p.info
}

// Dir is the file_path half of a record identity.
func (p *Path) Dir() string {
	return filepath.Dir(p.absPath)
}

// Base is the file_name half of a record identity.
func (p *Path) Base() string {
	return filepath.Base(p.absPath)
}
