package integrity

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotCorrupted is returned by Accept for a file with nothing to acknowledge.
var ErrNotCorrupted = errors.New("file is not flagged corrupted")

// Accept acknowledges the current content of a corrupted file. The corrupted
// record is kept as history and a new active record is inserted with the
// file's present digest, so later scans compare against it.
func (e *Engine) Accept(ctx context.Context, rawPath string) (*Record, error) {
	p, err := e.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if p.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", p.String())
	}

	o := e.hash(p)
	if o.kind != outcomeHashed {
		return nil, fmt.Errorf("hashing %s: %w", p.String(), o.err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := tx.Lookup(ctx, p.Dir(), p.Base())
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", p.String(), err)
	}
	if existing == nil || !existing.Corrupted || existing.Active() {
		return nil, fmt.Errorf("%s: %w", p.String(), ErrNotCorrupted)
	}

	rec, err := tx.Insert(ctx, &Record{
		FilePath:   p.Dir(),
		FileName:   p.Base(),
		LastModify: o.modTime,
		FileHash:   o.digest,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting %s: %w", p.String(), err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	e.logger.Info("corruption accepted", "path", p.String(), "previous_id", existing.ID, "id", rec.ID)
	return rec, nil
}
