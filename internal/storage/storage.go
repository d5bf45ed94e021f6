package storage

import (
	"context"
	"time"

	"github.com/dshills/linkarchiver/pkg/types"
)

// Storage persists dedup fingerprints and submission history
type Storage interface {
	// Fingerprint operations
	SaveFingerprints(ctx context.Context, records []FingerprintRecord) (inserted int, err error)
	LoadFingerprints(ctx context.Context) ([]FingerprintRecord, error)
	HasFingerprint(ctx context.Context, fp types.Fingerprint) (bool, error)

	// Submission operations
	RecordSubmission(ctx context.Context, sub *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context, limit int) ([]*Submission, error)

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// FingerprintRecord is a persisted dedup entry. URL is empty for entries
// restored without their source string.
type FingerprintRecord struct {
	Fingerprint types.Fingerprint
	URL         string
	SubmittedAt time.Time
}

// Submission is one add call
type Submission struct {
	ID        string // UUID
	URLs      []string
	Outcome   types.SubmitOutcome
	Error     *string // Nullable
	CreatedAt time.Time
}

// Stats summarises the stored state
type Stats struct {
	Fingerprints     int
	Submissions      map[types.SubmitOutcome]int
	LastSubmissionAt time.Time
	SchemaVersion    string
	BuildMode        string
}
