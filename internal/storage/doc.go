// Package storage provides SQLite-based persistence for submission state.
//
// The storage layer manages:
//   - Fingerprints of URLs that were submitted successfully
//   - A history of every submission attempt and its outcome
//
// The in-memory dedup cache stays authoritative while the process runs.
// Storage restores it at startup and receives a snapshot at shutdown, so a
// URL submitted yesterday is still recognised today.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semantic versions)
//   - fingerprints: SHA-256 of the submitted URL string, the URL, and when
//   - submissions: one row per add call with its outcome and URL list
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.linkarchiver/state.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	records, err := db.LoadFingerprints(ctx)
//
// # Transactions
//
// A flush records its submission and the resulting fingerprints atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.RecordSubmission(ctx, sub); err != nil {
//	    return err
//	}
//	if _, err := tx.SaveFingerprints(ctx, records); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Modes
//
// The SQLite driver is chosen at build time:
//
//	go build ./...                          # modernc.org/sqlite, no CGO
//	CGO_ENABLED=1 go build -tags cgo_sqlite # github.com/mattn/go-sqlite3
//
// BuildMode and DriverName report which driver was compiled in.
//
// # Migrations
//
// Migrations are versioned with semantic versions and applied in order on
// open. A database at 1.0.0 opened by a newer binary is upgraded in place.
package storage
