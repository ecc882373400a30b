package integrity

import "errors"

var (
	// ErrDuplicateActive means an insert would create a second active record
	// for one identity. This is a logic defect, never a user-facing condition.
	ErrDuplicateActive = errors.New("active record already exists for identity")

	// ErrNotDirectory is returned when a scan root is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrFileChanged is returned when a file's size or mtime moves while it is being hashed.
	ErrFileChanged = errors.New("file changed while hashing")

	// ErrStoreUnavailable wraps any failure to open or verify the record store.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrStoreRolledBack means the vault holds a newer snapshot than the local
	// store, so the local store was restored from an old copy or replaced.
	ErrStoreRolledBack = errors.New("local record store is older than the vault snapshot")

	// ErrSnapshotNotFound is returned by a Vault with no snapshot for the host.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
