package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"integrity-go/internal/database/migrations"
	"integrity-go/internal/integrity"
)

// MemoryPath is the path marker for an ephemeral store discarded at process exit.
const MemoryPath = ":memory:"

// lastModifyLayout is the text layout of files.last_modify, in local time.
// It is part of the persisted contract with stores written by earlier releases.
const lastModifyLayout = "2006-01-02 15:04:05"

// SQLiteDatabase implements integrity.RecordStore using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the store at path, applies pending migrations and
// verifies the schema. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	s := &SQLiteDatabase{db: db, path: path}
	if err := s.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured
// and the schema applied.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:   db,
		path: "",
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes every writer, and keeps an in-memory
	// database alive across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// Transactions

// Begin opens a scan transaction.
func (s *SQLiteDatabase) Begin(ctx context.Context) (integrity.StoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// sqliteTx implements integrity.StoreTx. Every query is parameterized.
type sqliteTx struct {
	tx *sql.Tx
}

const selectRecordColumns = `id, file_path, file_name, last_modify, file_hash, file_removed, file_corrupted`

func (t *sqliteTx) Lookup(ctx context.Context, filePath, fileName string) (*integrity.Record, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+selectRecordColumns+`
		FROM files
		WHERE file_path = ? AND file_name = ?
		ORDER BY (file_removed = 0 AND file_corrupted = 0) DESC, id DESC
		LIMIT 1`, filePath, fileName)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file record: %w", err)
	}
	return rec, nil
}

func (t *sqliteTx) Insert(ctx context.Context, rec *integrity.Record) (*integrity.Record, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO files (file_path, file_name, last_modify, file_hash, file_removed, file_corrupted)
		VALUES (?, ?, ?, ?, 0, 0)`,
		rec.FilePath, rec.FileName, formatLastModify(rec.LastModify), rec.FileHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("inserting %s/%s: %w", rec.FilePath, rec.FileName, integrity.ErrDuplicateActive)
		}
		return nil, fmt.Errorf("inserting file record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted id: %w", err)
	}

	created := *rec
	created.ID = id
	created.LastModify = rec.LastModify.Truncate(time.Second)
	created.Removed = false
	created.Corrupted = false
	return &created, nil
}

func (t *sqliteTx) MarkCorrupted(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE files SET file_corrupted = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("marking record %d corrupted: %w", id, err)
	}
	return nil
}

func (t *sqliteTx) MarkRemoved(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE files SET file_removed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("marking record %d removed: %w", id, err)
	}
	return nil
}

func (t *sqliteTx) IterateActive(ctx context.Context) iter.Seq2[*integrity.Record, error] {
	return func(yield func(*integrity.Record, error) bool) {
		rows, err := t.tx.QueryContext(ctx, `
			SELECT `+selectRecordColumns+`
			FROM files
			WHERE file_removed = 0 AND file_corrupted = 0`)
		if err != nil {
			yield(nil, fmt.Errorf("querying active records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scanning active record: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterating active records: %w", err))
		}
	}
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback is safe to call after Commit.
func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// Record listing

func (s *SQLiteDatabase) ListRecords(ctx context.Context, filter integrity.RecordFilter) ([]*integrity.Record, error) {
	var (
		where []string
		args  []any
	)

	switch filter.Status {
	case integrity.StatusAll, "":
	case integrity.StatusActive:
		where = append(where, "file_removed = 0 AND file_corrupted = 0")
	case integrity.StatusCorrupted:
		where = append(where, "file_corrupted = 1")
	case integrity.StatusRemoved:
		where = append(where, "file_removed = 1")
	default:
		return nil, fmt.Errorf("unknown record status: %q", filter.Status)
	}

	if filter.PathPrefix != "" {
		// Range over the binary collation: everything below prefix+"/" sorts
		// before prefix+"0". LIKE would fold ASCII case.
		prefix := strings.TrimSuffix(filter.PathPrefix, "/")
		where = append(where, "(file_path = ? OR (file_path >= ? AND file_path < ?))")
		args = append(args, prefix, prefix+"/", prefix+"0")
	}

	query := `SELECT ` + selectRecordColumns + ` FROM files`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY file_path, file_name, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var result []*integrity.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return result, nil
}

// Scan run tracking

func (s *SQLiteDatabase) CreateScanRun(ctx context.Context, runID string) (*integrity.ScanRun, error) {
	startedAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (run_id, started_at, status) VALUES (?, ?, ?)`,
		runID, startedAt, integrity.RunRunning)
	if err != nil {
		return nil, fmt.Errorf("creating scan run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading scan run id: %w", err)
	}
	return &integrity.ScanRun{
		ID:        id,
		RunID:     runID,
		StartedAt: startedAt,
		Status:    integrity.RunRunning,
	}, nil
}

func (s *SQLiteDatabase) FinishScanRun(ctx context.Context, run *integrity.ScanRun) error {
	finishedAt := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE scans
		SET finished_at = ?, status = ?, files_seen = ?, added = ?, corrupted = ?, missing = ?, skipped = ?
		WHERE id = ?`,
		finishedAt, run.Status, run.FilesSeen, run.Added, run.Corrupted, run.Missing, run.Skipped, run.ID)
	if err != nil {
		return fmt.Errorf("finishing scan run: %w", err)
	}
	run.FinishedAt = &finishedAt
	return nil
}

func (s *SQLiteDatabase) ListScanRuns(ctx context.Context, limit int) ([]*integrity.ScanRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, started_at, finished_at, status, files_seen, added, corrupted, missing, skipped
		FROM scans
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	defer rows.Close()

	var result []*integrity.ScanRun
	for rows.Next() {
		var (
			run      integrity.ScanRun
			finished sql.NullTime
		)
		err := rows.Scan(&run.ID, &run.RunID, &run.StartedAt, &finished, &run.Status,
			&run.FilesSeen, &run.Added, &run.Corrupted, &run.Missing, &run.Skipped)
		if err != nil {
			return nil, fmt.Errorf("scanning scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		result = append(result, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxScanRunID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM scans`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max scan run ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
// destPath must not exist.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*integrity.Record, error) {
	var (
		rec        integrity.Record
		lastModify sql.NullString
		fileHash   sql.NullString
		filePath   sql.NullString
		fileName   sql.NullString
	)
	err := row.Scan(&rec.ID, &filePath, &fileName, &lastModify, &fileHash, &rec.Removed, &rec.Corrupted)
	if err != nil {
		return nil, err
	}
	rec.FilePath = filePath.String
	rec.FileName = fileName.String
	rec.FileHash = fileHash.String
	if lastModify.Valid && lastModify.String != "" {
		t, err := time.ParseInLocation(lastModifyLayout, lastModify.String, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parsing last_modify %q: %w", lastModify.String, err)
		}
		rec.LastModify = t
	}
	return &rec, nil
}

func formatLastModify(t time.Time) string {
	return t.In(time.Local).Format(lastModifyLayout)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// Compile-time check that SQLiteDatabase implements integrity.RecordStore interface
var _ integrity.RecordStore = (*SQLiteDatabase)(nil)
