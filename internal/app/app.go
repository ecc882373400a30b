package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"integrity-go/internal/alert"
	"integrity-go/internal/config"
	"integrity-go/internal/database"
	"integrity-go/internal/encryption"
	"integrity-go/internal/fs"
	"integrity-go/internal/integrity"
	"integrity-go/internal/vault"
)

// Options tunes an IntegrityApp beyond what the config file holds.
type Options struct {
	// Progress receives scan liveness callbacks; nil disables them.
	Progress integrity.Progress
	// Verbose enables debug logging.
	Verbose bool
	// IDs names the scan run; defaults to random UUIDs.
	IDs integrity.IDGenerator
}

// IntegrityApp is the application layer between the CLI and the engine.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the store lifecycle on Close.
type IntegrityApp struct {
	cfg       *config.Config
	store     integrity.RecordStore
	vault     integrity.Vault // nil when snapshot replication is disabled
	fsmgr     integrity.FilesystemManager
	encryptor integrity.Encryptor
	engine    *integrity.Engine
	logger    integrity.Logger
	runID     string
	runs      int
	mutated   bool
	logFile   *os.File
}

// NewIntegrityApp creates a fully wired IntegrityApp from the given config.
// The caller must call Close when done.
func NewIntegrityApp(ctx context.Context, cfg *config.Config, opts Options) (*IntegrityApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Scan.Ignore)

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	if v != nil {
		if err := v.ValidateSetup(); err != nil {
			return nil, fmt.Errorf("validating vault: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, errors.New("snapshot encryption keys not found: run 'integrity keys init'")
		}
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	if v != nil {
		if err := checkRollback(ctx, store, v, cfg.HostID); err != nil {
			store.Close()
			return nil, err
		}
	}

	ids := opts.IDs
	if ids == nil {
		ids = integrity.UUIDGenerator{}
	}
	runID := ids.New()
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	slogger, logFile, err := newLogger(cfg.LogDir, runID, level)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	notifier, err := alert.NewNotifierFromConfig(cfg.Alerts, cfg.HostID, logger)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating alert sinks: %w", err)
	}

	engine := integrity.NewEngine(store, fsmgr, notifier, logger, integrity.RealClock{}, integrity.EngineOptions{
		Workers:  cfg.Scan.Workers,
		Progress: opts.Progress,
		Exclude:  ownFiles(cfg, fsmgr),
	})

	return &IntegrityApp{
		cfg:       cfg,
		store:     store,
		vault:     v,
		fsmgr:     fsmgr,
		encryptor: enc,
		engine:    engine,
		logger:    logger,
		runID:     runID,
		logFile:   logFile,
	}, nil
}

// openStore opens the record store and verifies its schema.
// Every failure wraps integrity.ErrStoreUnavailable.
func openStore(cfg config.StoreConfig) (integrity.RecordStore, error) {
	if cfg.Type == "sqlite" && cfg.Path != "" && cfg.Path != database.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("%w: creating store directory: %w", integrity.ErrStoreUnavailable, err)
		}
	}

	store, err := database.NewDatabaseFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integrity.ErrStoreUnavailable, err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: schema out of date: %w", integrity.ErrStoreUnavailable, err)
	}
	return store, nil
}

// checkRollback refuses a local store older than the vault's snapshot of it.
func checkRollback(ctx context.Context, store integrity.RecordStore, v integrity.Vault, hostID string) error {
	remote, err := v.GetSnapshotVersion(hostID)
	if err != nil {
		return fmt.Errorf("checking vault snapshot version: %w", err)
	}
	local, err := store.MaxScanRunID(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading local version: %w", integrity.ErrStoreUnavailable, err)
	}
	if remote > local {
		return fmt.Errorf("%w (local=%d, vault=%d): fetch the snapshot or re-initialize", integrity.ErrStoreRolledBack, local, remote)
	}
	return nil
}

// ownFiles lists the files integrity itself rewrites on every run. Tracking
// them would report corruption each scan when a root contains base_dir.
// Paths are canonical to match the walk, which starts from a resolved root.
func ownFiles(cfg *config.Config, fsmgr integrity.FilesystemManager) []string {
	var paths []string
	if cfg.Store.Type == "sqlite" && cfg.Store.Path != database.MemoryPath {
		if p, err := fsmgr.Expand(cfg.Store.Path); err == nil {
			p = fs.Canonicalize(p)
			paths = append(paths, p, p+"-wal", p+"-shm", p+"-journal")
		}
	}
	if p, err := fsmgr.Expand(filepath.Join(cfg.LogDir, LogFileName)); err == nil {
		paths = append(paths, fs.Canonicalize(p))
	}
	return paths
}

// RunID identifies this process's scan run and log lines.
func (a *IntegrityApp) RunID() string {
	return a.runID
}

// Scan reconciles every configured root against the record store and
// records the outcome as a scan run.
func (a *IntegrityApp) Scan(ctx context.Context) (*integrity.ScanReport, error) {
	if len(a.cfg.Roots) == 0 {
		return nil, errors.New("no roots configured")
	}

	// Bookkeeping is written even for an interrupted scan.
	bookCtx := context.WithoutCancel(ctx)

	run, err := a.beginRun(bookCtx)
	if err != nil {
		return nil, err
	}

	report, scanErr := a.engine.Scan(ctx, a.cfg.Roots)

	recordReport(run, report, scanErr)
	if err := a.store.FinishScanRun(bookCtx, run); err != nil {
		a.logger.Error("recording scan run failed", "run_id", a.runID, "error", err)
		if scanErr == nil {
			scanErr = err
		}
	}
	return report, scanErr
}

// Accept resolves rawPath and acknowledges its current content as good.
// The accept is recorded as a run so the store version advances with it.
func (a *IntegrityApp) Accept(ctx context.Context, rawPath string) (*integrity.Record, error) {
	bookCtx := context.WithoutCancel(ctx)

	run, err := a.beginRun(bookCtx)
	if err != nil {
		return nil, err
	}

	rec, acceptErr := a.engine.Accept(ctx, rawPath)
	run.Status = integrity.RunAccepted
	if acceptErr != nil {
		run.Status = integrity.RunError
	} else {
		run.FilesSeen = 1
		run.Added = 1
	}
	if err := a.store.FinishScanRun(bookCtx, run); err != nil {
		a.logger.Error("recording accept run failed", "run_id", run.RunID, "error", err)
		if acceptErr == nil {
			acceptErr = err
		}
	}
	if acceptErr != nil {
		return nil, acceptErr
	}
	return rec, nil
}

// beginRun persists a running bookkeeping row. The first run of a process is
// named by its run ID; later ones get a numeric suffix.
func (a *IntegrityApp) beginRun(ctx context.Context) (*integrity.ScanRun, error) {
	runID := a.runID
	if a.runs > 0 {
		runID = fmt.Sprintf("%s.%d", a.runID, a.runs)
	}
	run, err := a.store.CreateScanRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integrity.ErrStoreUnavailable, err)
	}
	a.runs++
	a.mutated = true
	return run, nil
}

// ListRecords returns stored records. A PathPrefix is expanded and
// canonicalized like a root.
func (a *IntegrityApp) ListRecords(ctx context.Context, filter integrity.RecordFilter) ([]*integrity.Record, error) {
	if filter.PathPrefix != "" {
		p, err := a.fsmgr.Expand(filter.PathPrefix)
		if err != nil {
			return nil, fmt.Errorf("resolving prefix: %w", err)
		}
		filter.PathPrefix = fs.Canonicalize(p)
	}
	return a.store.ListRecords(ctx, filter)
}

// History returns the most recent scan runs, newest first.
func (a *IntegrityApp) History(ctx context.Context, limit int) ([]*integrity.ScanRun, error) {
	return a.store.ListScanRuns(ctx, limit)
}

// Close closes all resources. When this run changed the store and a vault is
// configured, a snapshot of the store is encrypted and uploaded first.
func (a *IntegrityApp) Close() error {
	var firstErr error

	var snapshotPath string
	var version int64
	if a.mutated && a.vault != nil {
		dir, err := os.MkdirTemp("", "integrity-snapshot-*")
		if err != nil {
			firstErr = fmt.Errorf("creating temp dir for snapshot: %w", err)
		} else {
			defer os.RemoveAll(dir)
			snapshotPath = filepath.Join(dir, "store.db")
			version, err = a.store.MaxScanRunID(context.Background())
			if err == nil {
				err = a.store.BackupTo(snapshotPath)
			}
			if err != nil {
				firstErr = fmt.Errorf("snapshotting record store: %w", err)
				snapshotPath = ""
			}
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing record store: %w", err)
	}

	if snapshotPath != "" {
		if err := a.uploadSnapshot(snapshotPath, version); err != nil {
			a.logger.Error("snapshot upload failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			a.logger.Info("snapshot uploaded", "version", version)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadSnapshot encrypts the store copy at path and uploads it to the vault.
func (a *IntegrityApp) uploadSnapshot(path string, version int64) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	encPath := path + ".enc"
	dst, err := os.Create(encPath)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	defer dst.Close()

	if err := a.encryptor.Encrypt(src, dst); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}

	info, err := dst.Stat()
	if err != nil {
		return fmt.Errorf("stat encrypted snapshot: %w", err)
	}
	if _, err := dst.Seek(0, 0); err != nil {
		return fmt.Errorf("rewinding encrypted snapshot: %w", err)
	}

	if err := a.vault.PutSnapshot(a.cfg.HostID, dst, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	return nil
}

// InitKeys generates the snapshot encryption keys named in cfg.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption keys: %w", err)
	}
	return nil
}

// FetchSnapshot downloads the host's latest store snapshot from the vault
// and writes the decrypted store to destPath, which must not exist. It does
// not open the local store, so it works when that store is lost or rolled back.
func FetchSnapshot(ctx context.Context, cfg *config.Config, destPath, passphrase string) (int64, error) {
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return 0, fmt.Errorf("creating vault: %w", err)
	}
	if v == nil {
		return 0, errors.New("no vault configured")
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}
	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking encryption key: %w", err)
	}

	version, err := v.GetSnapshotVersion(cfg.HostID)
	if err != nil {
		return 0, fmt.Errorf("reading snapshot version: %w", err)
	}

	tmp, err := os.CreateTemp("", "integrity-fetch-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := v.GetSnapshot(cfg.HostID, tmp); err != nil {
		return 0, fmt.Errorf("downloading snapshot: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return 0, fmt.Errorf("rewinding snapshot: %w", err)
	}

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, fmt.Errorf("creating destination: %w", err)
	}
	if err := dc.Decrypt(tmp, dst); err != nil {
		dst.Close()
		os.Remove(destPath)
		return 0, fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("closing destination: %w", err)
	}
	return version, nil
}
