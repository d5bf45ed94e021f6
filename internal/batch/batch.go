// Package batch accumulates accepted URLs and decides when to submit them.
//
// A flush is due when it is forced, or when the batch is non-empty and more
// than the configured interval has passed since the last flush. A scheduler
// that has never flushed is always due. An empty batch is never flushed.
// A failed attempt that drained nothing (MarkAttempt) restarts the interval
// for unforced flushes, so a broken login is not retried on every check.
//
// The Scheduler is not safe for concurrent use; the pipeline serializes it.
package batch

import (
	"slices"
	"time"

	"github.com/dshills/linkarchiver/pkg/types"
)

// Scheduler owns the pending batch
type Scheduler struct {
	urls        []string
	index       map[string]struct{}
	lastAppend  time.Time
	lastFlush   time.Time
	everFlushed bool
	lastAttempt time.Time // Last flush attempt that failed before draining
}

// NewScheduler returns an empty scheduler that has never flushed
func NewScheduler() *Scheduler {
	return &Scheduler{index: make(map[string]struct{})}
}

// Append adds urls to the batch in order
func (s *Scheduler) Append(urls []string, now time.Time) {
	if len(urls) == 0 {
		return
	}
	for _, u := range urls {
		s.urls = append(s.urls, u)
		s.index[u] = struct{}{}
	}
	s.lastAppend = now
}

// ShouldFlush reports whether the batch is due for submission
func (s *Scheduler) ShouldFlush(force bool, now time.Time, interval time.Duration) bool {
	if len(s.urls) == 0 {
		return false
	}
	if force {
		return true
	}
	since := s.lastFlush
	if s.lastAttempt.After(since) {
		since = s.lastAttempt
	} else if !s.everFlushed {
		return true
	}
	return now.Sub(since) > interval
}

// MarkAttempt records a flush attempt that failed before the batch was
// drained. Unforced flushes wait a full interval after it.
func (s *Scheduler) MarkAttempt(now time.Time) {
	s.lastAttempt = now
}

// Drain hands the batch to the caller and empties the scheduler. The flush
// clock restarts at now whether or not the submission later succeeds.
func (s *Scheduler) Drain(now time.Time) types.Batch {
	out := types.Batch(slices.Clone(s.urls))
	s.urls = s.urls[:0]
	clear(s.index)
	s.lastFlush = now
	s.everFlushed = true
	return out
}

// Len returns the number of pending URLs
func (s *Scheduler) Len() int {
	return len(s.urls)
}

// Pending reports whether url is waiting in the batch
func (s *Scheduler) Pending(url string) bool {
	_, ok := s.index[url]
	return ok
}

// Snapshot copies the pending URLs
func (s *Scheduler) Snapshot() []string {
	return slices.Clone(s.urls)
}

// LastFlush returns the time of the last drain and whether one happened
func (s *Scheduler) LastFlush() (time.Time, bool) {
	return s.lastFlush, s.everFlushed
}

// LastAppend returns the time URLs were last added
func (s *Scheduler) LastAppend() time.Time {
	return s.lastAppend
}
