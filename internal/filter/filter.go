// Package filter decides which candidate URLs are eligible for submission.
//
// The chain runs three stages in order and stops at the first rejection:
//
//  1. Dedup: already submitted (duplicate) or already waiting in the batch (pending)
//  2. Private address: literal IPv4 hosts in 10/8, 172.16/12 or 192.168/16
//  3. Ignored domain: exact host match against the configured ignore list
//
// Each stage is toggled by the settings snapshot passed to Check. Host names
// are never resolved. Accepting a candidate has no side effects.
package filter

import (
	"net/netip"
	"slices"

	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/pkg/types"
)

// privateRanges are the RFC 1918 blocks
var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// SubmittedSet reports whether a fingerprint has already been submitted
type SubmittedSet interface {
	Contains(fp types.Fingerprint) bool
}

// PendingSet reports whether a URL is already waiting to be submitted
type PendingSet interface {
	Pending(url string) bool
}

// Decision is the outcome of Check. Reason is empty when Accept is true.
type Decision struct {
	Accept bool
	Reason types.RejectReason
}

func accept() Decision {
	return Decision{Accept: true}
}

func reject(reason types.RejectReason) Decision {
	return Decision{Reason: reason}
}

// Chain evaluates candidates against the dedup state and the settings
type Chain struct {
	submitted SubmittedSet
	pending   PendingSet
}

// New creates a chain. Either set may be nil, which disables that lookup.
func New(submitted SubmittedSet, pending PendingSet) *Chain {
	return &Chain{submitted: submitted, pending: pending}
}

// Check runs the stages enabled in cfg against candidate
func (c *Chain) Check(candidate types.CandidateURL, cfg *config.Config) Decision {
	if cfg.Filters.Dedup {
		if c.submitted != nil && c.submitted.Contains(candidate.Fingerprint()) {
			return reject(types.ReasonDuplicate)
		}
		if c.pending != nil && c.pending.Pending(candidate.Raw) {
			return reject(types.ReasonPending)
		}
	}

	if cfg.Filters.IgnorePrivateAddresses && IsPrivateAddress(candidate.Host()) {
		return reject(types.ReasonPrivateAddress)
	}

	if ignored := cfg.IgnoredDomains(); len(ignored) > 0 && slices.Contains(ignored, candidate.Host()) {
		return reject(types.ReasonIgnoredDomain)
	}

	return accept()
}

// IsPrivateAddress reports whether host is a dotted IPv4 literal inside a
// private range
func IsPrivateAddress(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Is4() {
		return false
	}
	for _, p := range privateRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
