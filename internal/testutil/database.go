package testutil

import (
	"testing"

	"integrity-go/internal/database"
	"integrity-go/internal/integrity"
)

// NewTestDatabase creates a new in-memory SQLite record store with migrations applied.
// The store is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(database.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var _ integrity.RecordStore = (*database.SQLiteDatabase)(nil)
