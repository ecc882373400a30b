package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"integrity-go/internal/integrity"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface,
// meant for a mounted backup disk or network share:
//
//	<root>/
//	  snapshots/
//	    <hostID>.db        (latest record store snapshot)
//	    <hostID>.version   (scan run id the snapshot was taken at)
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")

	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

// PutSnapshot replaces the host's snapshot, then records its version.
// A crash in between leaves the old version number, which only makes the
// rollback check more lenient.
func (v *FileSystemVault) PutSnapshot(hostID string, r io.Reader, size int64, version int64) error {
	if err := writeFileAtomic(v.snapshotPath(hostID), r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	if err := writeFileAtomic(v.versionPath(hostID), strings.NewReader(versionData), int64(len(versionData))); err != nil {
		return fmt.Errorf("writing version file: %w", err)
	}
	return nil
}

// GetSnapshot writes the host's snapshot to w.
func (v *FileSystemVault) GetSnapshot(hostID string, w io.Writer) error {
	f, err := os.Open(v.snapshotPath(hostID))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("host %s: %w", hostID, integrity.ErrSnapshotNotFound)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// GetSnapshotVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetSnapshotVersion(hostID string) (int64, error) {
	data, err := os.ReadFile(v.versionPath(hostID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.snapshotsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

func (v *FileSystemVault) snapshotPath(hostID string) string {
	return filepath.Join(v.snapshotsDir, hostID+".db")
}

func (v *FileSystemVault) versionPath(hostID string) string {
	return filepath.Join(v.snapshotsDir, hostID+".version")
}

// writeFileAtomic writes data from r to destPath via a temp file and rename.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements integrity.Vault interface
var _ integrity.Vault = (*FileSystemVault)(nil)
