package types

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
)

// Link is a raw URL string extracted from text, not yet validated
type Link string

// CandidateURL is a Link that parsed into an absolute URL with a host
type CandidateURL struct {
	Raw string   // Sanitized link string as found in the text
	URL *url.URL // Parsed form
}

// Host returns the canonical host: no port, lowercased, without the
// trailing root dot. Raw keeps the link exactly as written.
func (c CandidateURL) Host() string {
	if c.URL == nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(c.URL.Hostname()), ".")
}

// Fingerprint returns the dedup key for this candidate
func (c CandidateURL) Fingerprint() Fingerprint {
	return NewFingerprint(c.Raw)
}

// Fingerprint is the SHA-256 digest of a sanitized link string
type Fingerprint [32]byte

// NewFingerprint hashes the link string exactly as extracted
func NewFingerprint(raw string) Fingerprint {
	return Fingerprint(sha256.Sum256([]byte(raw)))
}

// String renders the fingerprint as standard base64
func (f Fingerprint) String() string {
	return base64.StdEncoding.EncodeToString(f[:])
}

// RejectReason tags why the filter chain rejected a candidate
type RejectReason string

const (
	ReasonNone           RejectReason = ""
	ReasonDuplicate      RejectReason = "duplicate"
	ReasonPending        RejectReason = "pending"
	ReasonPrivateAddress RejectReason = "private_address"
	ReasonIgnoredDomain  RejectReason = "ignored_domain"
)

// Batch is an ordered sequence of URL strings awaiting a single submission
type Batch []string
