package integrity

import "io"

// Vault stores offsite copies of the record store.
// All operations stream so large stores are never held in memory.
type Vault interface {
	// PutSnapshot stores the record store snapshot for a host.
	// size is the number of bytes that will be read from r.
	// version is stored alongside for rollback detection.
	PutSnapshot(hostID string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the latest snapshot for a host to w.
	GetSnapshot(hostID string, w io.Writer) error

	// GetSnapshotVersion returns the stored snapshot version for a host,
	// or 0 if none has been stored.
	GetSnapshotVersion(hostID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
