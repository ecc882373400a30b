package testutil

import (
	"context"
	"errors"
	"sync"

	"integrity-go/internal/integrity"
)

// ErrInjected is the default failure returned by FaultyStore.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a RecordStore and fails chosen operations.
// Zero-valued fields disable the corresponding fault.
type FaultyStore struct {
	integrity.RecordStore

	mu sync.Mutex
	// FailInsertAfter makes the Nth Insert (1-based) and every later one fail.
	FailInsertAfter int
	// FailCommit makes every Commit fail.
	FailCommit bool
	// FailMarkRemoved makes every MarkRemoved fail.
	FailMarkRemoved bool

	inserts int
	commits int
}

// NewFaultyStore wraps store.
func NewFaultyStore(store integrity.RecordStore) *FaultyStore {
	return &FaultyStore{RecordStore: store}
}

// Commits returns the number of successful commits.
func (s *FaultyStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *FaultyStore) Begin(ctx context.Context) (integrity.StoreTx, error) {
	tx, err := s.RecordStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{StoreTx: tx, store: s}, nil
}

type faultyTx struct {
	integrity.StoreTx
	store *FaultyStore
}

func (t *faultyTx) Insert(ctx context.Context, rec *integrity.Record) (*integrity.Record, error) {
	t.store.mu.Lock()
	t.store.inserts++
	fail := t.store.FailInsertAfter > 0 && t.store.inserts >= t.store.FailInsertAfter
	t.store.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return t.StoreTx.Insert(ctx, rec)
}

func (t *faultyTx) MarkRemoved(ctx context.Context, id int64) error {
	t.store.mu.Lock()
	fail := t.store.FailMarkRemoved
	t.store.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return t.StoreTx.MarkRemoved(ctx, id)
}

func (t *faultyTx) Commit() error {
	t.store.mu.Lock()
	fail := t.store.FailCommit
	t.store.mu.Unlock()
	if fail {
		t.StoreTx.Rollback()
		return ErrInjected
	}
	if err := t.StoreTx.Commit(); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.commits++
	t.store.mu.Unlock()
	return nil
}

var _ integrity.RecordStore = (*FaultyStore)(nil)
