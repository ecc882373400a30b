package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"files", "scans", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO files (file_path, file_name, last_modify, file_hash) VALUES ('/data', 'a.txt', '2024-01-15 10:30:00', 'abc')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("files count after second MigrateUp() = %d, want 1", count)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

// A store created by the original tool has a bare files table and no
// schema_migrations. Migrating it must keep every row and default the flags.
func TestMigrateUp_AdoptsUnversionedStore(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	_, err := db.Exec(`CREATE TABLE files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT,
		file_name TEXT,
		last_modify TEXT,
		file_hash TEXT
	)`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO files (file_path, file_name, last_modify, file_hash) VALUES ('/home/u/docs', 'a.txt', '2019-03-01 12:00:00', 'deadbeef')`)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	var hash string
	var removed, corrupted int
	err = db.QueryRow(`SELECT file_hash, file_removed, file_corrupted FROM files WHERE file_name = 'a.txt'`).Scan(&hash, &removed, &corrupted)
	if err != nil {
		t.Fatalf("reading migrated row: %v", err)
	}
	if hash != "deadbeef" {
		t.Errorf("file_hash = %q, want %q", hash, "deadbeef")
	}
	if removed != 0 || corrupted != 0 {
		t.Errorf("flags = (%d, %d), want (0, 0)", removed, corrupted)
	}
}

func TestSchema_OneActiveRecordPerIdentity(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `INSERT INTO files (file_path, file_name, last_modify, file_hash, file_removed, file_corrupted) VALUES ('/d', 'a.txt', '2024-01-01 00:00:00', ?, ?, ?)`

	if _, err := db.Exec(insert, "h1", 0, 0); err != nil {
		t.Fatalf("first active insert: %v", err)
	}
	if _, err := db.Exec(insert, "h2", 0, 0); err == nil {
		t.Error("Expected unique constraint violation for second active record, but insert succeeded")
	}

	// Flagged rows do not count as active.
	if _, err := db.Exec(insert, "h3", 1, 0); err != nil {
		t.Errorf("removed row insert: %v", err)
	}
	if _, err := db.Exec(insert, "h4", 0, 1); err != nil {
		t.Errorf("corrupted row insert: %v", err)
	}
}

func TestLatestVersion(t *testing.T) {
	v, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if v != 3 {
		t.Errorf("LatestVersion() = %d, want 3", v)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	return db
}
