package integrity

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"integrity-go/internal/fingerprint"
)

// EngineOptions tunes a scan.
type EngineOptions struct {
	// Workers bounds concurrent hashing. Zero or less means runtime.NumCPU().
	Workers int
	// Progress receives liveness callbacks; nil disables them.
	Progress Progress
	// Exclude lists absolute file paths never tracked, such as the record store itself.
	Exclude []string
}

// Engine reconciles the filesystem against the record store.
type Engine struct {
	store    RecordStore
	fsmgr    FilesystemManager
	notifier Notifier
	logger   Logger
	clock    Clock
	workers  int
	progress Progress
	exclude  map[string]struct{}
}

// NewEngine creates an Engine with the provided dependencies.
func NewEngine(store RecordStore, fsmgr FilesystemManager, notifier Notifier, logger Logger, clock Clock, opts EngineOptions) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	progress := opts.Progress
	if progress == nil {
		progress = NopProgress{}
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		exclude[p] = struct{}{}
	}
	return &Engine{
		store:    store,
		fsmgr:    fsmgr,
		notifier: notifier,
		logger:   logger,
		clock:    clock,
		workers:  workers,
		progress: progress,
		exclude:  exclude,
	}
}

type outcomeKind int

const (
	outcomeHashed outcomeKind = iota
	outcomeUnreadable
	outcomeIgnored
	outcomeDirError
)

// outcome is what the walker and hashing workers hand to the single writer.
type outcome struct {
	kind    outcomeKind
	path    *Path
	digest  string
	modTime time.Time
	err     error
}

// rootWalkError marks a failure to enumerate the root itself.
type rootWalkError struct {
	err error
}

func (e *rootWalkError) Error() string { return e.err.Error() }
func (e *rootWalkError) Unwrap() error { return e.err }

// alert is a notification held back until the transaction that produced it commits.
type alert struct {
	severity Severity
	message  string
}

// Scan walks every root, classifies each regular file against the store,
// then marks active records that were not observed as removed.
//
// Each root is committed on its own. A returned error means the scan was
// aborted (store failure or cancellation); roots committed before it stay
// committed and the sweep did not run. Root configuration errors are not
// returned here; they are reported in ScanReport.Roots.
func (e *Engine) Scan(ctx context.Context, roots []string) (*ScanReport, error) {
	report := &ScanReport{StartedAt: e.clock.Now()}
	session := NewScanSession()

	finish := func(err error) (*ScanReport, error) {
		report.FilesSeen = session.Len()
		report.FinishedAt = e.clock.Now()
		return report, err
	}

	e.logger.Info("scan started", "roots", len(roots), "workers", e.workers)

	for _, raw := range roots {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		result, err := e.scanRoot(ctx, raw, session, report)
		report.Roots = append(report.Roots, result)
		if err != nil {
			e.logger.Error("scan aborted", "root", raw, "error", err)
			return finish(err)
		}
	}

	if err := e.sweep(ctx, session, report); err != nil {
		e.logger.Error("missing-file sweep failed", "error", err)
		return finish(err)
	}
	report.SweepDone = true

	e.logger.Info("scan complete",
		"seen", session.Len(),
		"added", len(report.Added),
		"corrupted", len(report.Corrupted),
		"missing", len(report.Missing),
		"skipped", len(report.Skipped),
	)
	return finish(nil)
}

// scanRoot walks one root inside its own transaction.
// A non-nil error is fatal to the whole scan.
func (e *Engine) scanRoot(ctx context.Context, raw string, session *ScanSession, report *ScanReport) (RootResult, error) {
	result := RootResult{Root: raw}

	absRoot, err := e.fsmgr.Expand(raw)
	if err != nil {
		result.Err = fmt.Errorf("expanding root %s: %w", raw, err)
		e.logger.Error("root unavailable", "root", raw, "error", err)
		return result, nil
	}

	root, err := e.fsmgr.Resolve(absRoot)
	if err == nil && !root.IsDir() {
		err = fmt.Errorf("%s: %w", absRoot, ErrNotDirectory)
	}
	if err != nil {
		result.Err = fmt.Errorf("resolving root %s: %w", raw, err)
		session.MarkUnknown(absRoot)
		e.logger.Error("root unavailable", "root", raw, "error", err)
		return result, nil
	}
	result.Path = root.String()

	e.logger.Debug("walking root", "root", root.String())

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("starting transaction for %s: %w", root.String(), err)
	}
	defer tx.Rollback()

	files, alerts, err := e.walkRoot(ctx, root, tx, session, report)
	result.Files = files
	if err != nil {
		var rootErr *rootWalkError
		if !errors.As(err, &rootErr) {
			return result, err
		}
		result.Err = fmt.Errorf("enumerating root %s: %w", root.String(), rootErr.err)
		session.MarkUnknown(root.String())
		e.logger.Error("root unreadable", "root", root.String(), "error", rootErr.err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing %s: %w", root.String(), err)
	}

	e.flush(alerts)
	e.progress.RootFinished(root.String(), files)
	return result, nil
}

// walkRoot runs the walker and a bounded pool of hashing workers, and applies
// every outcome to tx from the calling goroutine, which is the only writer.
func (e *Engine) walkRoot(ctx context.Context, root *Path, tx StoreTx, session *ScanSession, report *ScanReport) (int, []alert, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *Path)
	results := make(chan outcome)

	g, gctx := errgroup.WithContext(ctx)

	send := func(o outcome) error {
		select {
		case results <- o:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	}

	g.Go(func() error {
		defer close(jobs)
		return e.fsmgr.Walk(gctx, root, func(p *Path, err error) error {
			if err != nil {
				if p.String() == root.String() {
					return &rootWalkError{err: err}
				}
				session.MarkUnknown(p.String())
				return send(outcome{kind: outcomeDirError, path: p, err: err})
			}
			if !session.Observe(p.String()) {
				// Already handled through an overlapping root.
				return nil
			}
			if e.isExcluded(p) || e.fsmgr.IsIgnored(p, root.String()) {
				return send(outcome{kind: outcomeIgnored, path: p})
			}
			select {
			case jobs <- p:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for p := range jobs {
				if err := send(e.hash(p)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	var walkErr error
	go func() {
		walkErr = g.Wait()
		close(results)
	}()

	var (
		files    int
		alerts   []alert
		writeErr error
	)
	for o := range results {
		if writeErr != nil {
			continue // drain
		}
		switch o.kind {
		case outcomeIgnored:
			report.Ignored++
			e.logger.Debug("file ignored", "path", o.path.String())
		case outcomeDirError:
			report.Skipped = append(report.Skipped, SkippedFile{Path: o.path.String(), Err: o.err})
			e.logger.Warn("directory unreadable", "path", o.path.String(), "error", o.err)
		case outcomeUnreadable:
			report.Skipped = append(report.Skipped, SkippedFile{Path: o.path.String(), Err: o.err})
			e.logger.Warn("file skipped", "path", o.path.String(), "error", o.err)
		case outcomeHashed:
			a, err := e.classify(ctx, tx, o, report)
			if err != nil {
				writeErr = err
				cancel()
				continue
			}
			if a != nil {
				alerts = append(alerts, *a)
			}
			files++
			e.progress.FileProcessed(root.String())
		}
	}

	if writeErr != nil {
		return files, nil, writeErr
	}
	if walkErr != nil {
		var rootErr *rootWalkError
		if errors.As(walkErr, &rootErr) {
			return files, alerts, rootErr
		}
		return files, nil, fmt.Errorf("walking %s: %w", root.String(), walkErr)
	}
	return files, alerts, nil
}

// hash fingerprints one file and checks it did not change underneath us.
func (e *Engine) hash(p *Path) outcome {
	o := outcome{kind: outcomeUnreadable, path: p}

	r, err := e.fsmgr.Open(p)
	if err != nil {
		o.err = fmt.Errorf("opening file: %w", err)
		return o
	}
	digest, err := fingerprint.Reader(r)
	r.Close()
	if err != nil {
		o.err = err
		return o
	}

	info, err := e.fsmgr.Stat(p)
	if err != nil {
		o.err = fmt.Errorf("re-stat file: %w", err)
		return o
	}
	if before := p.Info(); before != nil {
		if before.Size() != info.Size() || !before.ModTime().Equal(info.ModTime()) {
			o.err = ErrFileChanged
			return o
		}
	}

	o.kind = outcomeHashed
	o.digest = digest
	o.modTime = info.ModTime().Truncate(time.Second)
	return o
}

// classify applies the per-file state machine. The returned alert, if any,
// must only be delivered once tx commits.
func (e *Engine) classify(ctx context.Context, tx StoreTx, o outcome, report *ScanReport) (*alert, error) {
	p := o.path
	existing, err := tx.Lookup(ctx, p.Dir(), p.Base())
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", p.String(), err)
	}

	switch {
	case existing == nil:
		if err := e.insert(ctx, tx, o); err != nil {
			return nil, err
		}
		report.Added = append(report.Added, p.String())
		e.logger.Info("file added", "path", p.String())
		return nil, nil

	case existing.Active():
		if existing.FileHash == o.digest {
			report.Unchanged++
			return nil, nil
		}
		if err := tx.MarkCorrupted(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("marking %s corrupted: %w", p.String(), err)
		}
		report.Corrupted = append(report.Corrupted, p.String())
		e.logger.Error("file corrupted", "path", p.String(), "id", existing.ID)
		return &alert{severity: SeverityCritical, message: CorruptionMessage(p.String())}, nil

	case existing.Corrupted:
		// Frozen until accepted; already alerted when first detected.
		report.StillCorrupted = append(report.StillCorrupted, p.String())
		e.logger.Debug("file still corrupted", "path", p.String(), "id", existing.ID)
		return nil, nil

	default:
		if err := e.insert(ctx, tx, o); err != nil {
			return nil, err
		}
		report.Added = append(report.Added, p.String())
		report.Reappeared = append(report.Reappeared, p.String())
		e.logger.Info("file reappeared", "path", p.String(), "previous_id", existing.ID)
		return nil, nil
	}
}

func (e *Engine) insert(ctx context.Context, tx StoreTx, o outcome) error {
	_, err := tx.Insert(ctx, &Record{
		FilePath:   o.path.Dir(),
		FileName:   o.path.Base(),
		LastModify: o.modTime,
		FileHash:   o.digest,
	})
	if err != nil {
		return fmt.Errorf("inserting %s: %w", o.path.String(), err)
	}
	return nil
}

// sweep marks every active record not observed this scan as removed.
func (e *Engine) sweep(ctx context.Context, session *ScanSession, report *ScanReport) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting sweep transaction: %w", err)
	}
	defer tx.Rollback()

	var missing []*Record
	for rec, err := range tx.IterateActive(ctx) {
		if err != nil {
			return fmt.Errorf("iterating active records: %w", err)
		}
		full := rec.FullPath()
		if session.Observed(full) || session.InUnknownSubtree(full) {
			continue
		}
		missing = append(missing, rec)
	}

	alerts := make([]alert, 0, len(missing))
	for _, rec := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.MarkRemoved(ctx, rec.ID); err != nil {
			return fmt.Errorf("marking %s removed: %w", rec.FullPath(), err)
		}
		e.logger.Error("file missing", "path", rec.FullPath(), "id", rec.ID)
		alerts = append(alerts, alert{severity: SeverityCritical, message: MissingMessage(rec.FullPath())})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sweep: %w", err)
	}

	for _, rec := range missing {
		report.Missing = append(report.Missing, rec.FullPath())
	}
	e.flush(alerts)
	return nil
}

// flush delivers alerts. Delivery failures are logged, never fatal.
func (e *Engine) flush(alerts []alert) {
	for _, a := range alerts {
		if err := e.notifier.Notify(a.severity, a.message); err != nil {
			e.logger.Warn("alert delivery failed", "message", a.message, "error", err)
		}
	}
}

func (e *Engine) isExcluded(p *Path) bool {
	_, ok := e.exclude[p.String()]
	return ok
}
