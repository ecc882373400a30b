package integrity

import (
	"context"
	"io"
	"io/fs"
)

// WalkFunc is called for every regular file under a root. When a directory
// below the root cannot be read, it is called once with that directory and the
// error. Returning a non-nil error stops the walk.
type WalkFunc func(path *Path, err error) error

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Expand replaces a leading "~" with the home directory and returns the
	// cleaned absolute path. It does not touch the filesystem.
	Expand(rawPath string) (string, error)

	// Resolve expands rawPath, stats it, and rejects symlinks, devices,
	// pipes and sockets.
	Resolve(rawPath string) (*Path, error)

	// Walk enumerates regular files under root recursively, in filesystem
	// order. ctx is checked between entries.
	Walk(ctx context.Context, root *Path, fn WalkFunc) error

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	// Unlike path.Info() which returns cached info from when the path was resolved,
	// this always fetches current info from the filesystem.
	Stat(path *Path) (fs.FileInfo, error)

	// IsIgnored reports whether path, found under root, matches an ignore rule.
	IsIgnored(path *Path, root string) bool
}
