package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/linkarchiver/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidFingerprint is returned when a stored fingerprint has the wrong length
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)

// DefaultListLimit caps ListSubmissions when no limit is given
const DefaultListLimit = 50

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage opens dbPath and applies pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Fingerprint operations

// saveFingerprintsWithQuerier inserts new fingerprints and fills in the URL
// of existing rows that were stored without one
func saveFingerprintsWithQuerier(ctx context.Context, q querier, records []FingerprintRecord) (int, error) {
	inserted := 0
	for _, r := range records {
		at := r.SubmittedAt
		if at.IsZero() {
			at = time.Now()
		}
		result, err := q.ExecContext(ctx, `
			INSERT INTO fingerprints (fingerprint, url, submitted_at)
			VALUES (?, ?, ?)
			ON CONFLICT(fingerprint) DO NOTHING
		`, r.Fingerprint[:], r.URL, at.UTC())
		if err != nil {
			return inserted, fmt.Errorf("failed to save fingerprint: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, err
		}
		if n > 0 {
			inserted++
			continue
		}

		if r.URL != "" {
			if _, err := q.ExecContext(ctx,
				"UPDATE fingerprints SET url = ? WHERE fingerprint = ? AND url = ''",
				r.URL, r.Fingerprint[:]); err != nil {
				return inserted, fmt.Errorf("failed to update fingerprint url: %w", err)
			}
		}
	}
	return inserted, nil
}

// SaveFingerprints stores records in a single transaction
func (s *SQLiteStorage) SaveFingerprints(ctx context.Context, records []FingerprintRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	inserted, err := saveFingerprintsWithQuerier(ctx, tx, records)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fingerprints: %w", err)
	}
	return inserted, nil
}

func loadFingerprintsWithQuerier(ctx context.Context, q querier) ([]FingerprintRecord, error) {
	rows, err := q.QueryContext(ctx, "SELECT fingerprint, url, submitted_at FROM fingerprints ORDER BY submitted_at")
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []FingerprintRecord
	for rows.Next() {
		var raw []byte
		var r FingerprintRecord
		if err := rows.Scan(&raw, &r.URL, &r.SubmittedAt); err != nil {
			return nil, err
		}
		if len(raw) != len(r.Fingerprint) {
			return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFingerprint, len(raw))
		}
		copy(r.Fingerprint[:], raw)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStorage) LoadFingerprints(ctx context.Context) ([]FingerprintRecord, error) {
	return loadFingerprintsWithQuerier(ctx, s.querier())
}

func hasFingerprintWithQuerier(ctx context.Context, q querier, fp types.Fingerprint) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints WHERE fingerprint = ?", fp[:]).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStorage) HasFingerprint(ctx context.Context, fp types.Fingerprint) (bool, error) {
	return hasFingerprintWithQuerier(ctx, s.querier(), fp)
}

// Submission operations

func recordSubmissionWithQuerier(ctx context.Context, q querier, sub *Submission) error {
	if sub.ID == "" {
		return errors.New("submission id is required")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO submissions (id, url_count, urls, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.ID, len(sub.URLs), strings.Join(sub.URLs, "\n"), string(sub.Outcome), nullString(sub.Error), sub.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RecordSubmission(ctx context.Context, sub *Submission) error {
	return recordSubmissionWithQuerier(ctx, s.querier(), sub)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(sc scanner) (*Submission, error) {
	var sub Submission
	var urls, outcome string
	var count int
	var errText sql.NullString
	if err := sc.Scan(&sub.ID, &count, &urls, &outcome, &errText, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Outcome = types.SubmitOutcome(outcome)
	if urls != "" {
		sub.URLs = strings.Split(urls, "\n")
	}
	if errText.Valid {
		sub.Error = &errText.String
	}
	return &sub, nil
}

func getSubmissionWithQuerier(ctx context.Context, q querier, id string) (*Submission, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, url_count, urls, outcome, error, created_at
		FROM submissions
		WHERE id = ?
	`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SQLiteStorage) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	return getSubmissionWithQuerier(ctx, s.querier(), id)
}

func listSubmissionsWithQuerier(ctx context.Context, q querier, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, url_count, urls, outcome, error, created_at
		FROM submissions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStorage) ListSubmissions(ctx context.Context, limit int) ([]*Submission, error) {
	return listSubmissionsWithQuerier(ctx, s.querier(), limit)
}

// Status operations

func getStatsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{
		Submissions: make(map[types.SubmitOutcome]int),
		BuildMode:   BuildMode,
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&stats.Fingerprints); err != nil {
		return nil, fmt.Errorf("failed to count fingerprints: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM submissions GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.Submissions[types.SubmitOutcome(outcome)] = n
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT created_at FROM submissions ORDER BY created_at DESC LIMIT 1").Scan(&stats.LastSubmissionAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read last submission: %w", err)
	}

	version, err := schemaVersionWithQuerier(ctx, q)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version.String()

	return stats, nil
}

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	return getStatsWithQuerier(ctx, s.querier())
}

// Transaction methods

func (t *sqliteTx) SaveFingerprints(ctx context.Context, records []FingerprintRecord) (int, error) {
	return saveFingerprintsWithQuerier(ctx, t.querier(), records)
}

func (t *sqliteTx) LoadFingerprints(ctx context.Context) ([]FingerprintRecord, error) {
	return loadFingerprintsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) HasFingerprint(ctx context.Context, fp types.Fingerprint) (bool, error) {
	return hasFingerprintWithQuerier(ctx, t.querier(), fp)
}

func (t *sqliteTx) RecordSubmission(ctx context.Context, sub *Submission) error {
	return recordSubmissionWithQuerier(ctx, t.querier(), sub)
}

func (t *sqliteTx) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	return getSubmissionWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListSubmissions(ctx context.Context, limit int) ([]*Submission, error) {
	return listSubmissionsWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) GetStats(ctx context.Context) (*Stats, error) {
	return getStatsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
