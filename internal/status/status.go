// Package status carries the single-line progress message shown to users.
package status

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Messages shown during a flush cycle. An empty message clears the line.
const (
	LoggingIn        = "Logging into ArchiveBox..."
	LoginFailed      = "ArchiveBox login failed."
	SubmissionFailed = "ArchiveBox submission failed."
	Clear            = ""
)

// Archiving renders the in-progress message for n links
func Archiving(n int) string {
	return fmt.Sprintf("Archiving %d links...", n)
}

// Reporter receives status line updates
type Reporter interface {
	Report(message string)
}

// Nop discards every update
type Nop struct{}

func (Nop) Report(string) {}

// Holder keeps the latest message and logs each change
type Holder struct {
	logger *zap.Logger

	mu      sync.RWMutex
	message string
	updated time.Time
	history []Entry
}

// Entry is one recorded status change
type Entry struct {
	Message string
	At      time.Time
}

const maxHistory = 20

// NewHolder returns an empty holder
func NewHolder(logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{logger: logger}
}

// Report implements Reporter
func (h *Holder) Report(message string) {
	now := time.Now()

	h.mu.Lock()
	h.message = message
	h.updated = now
	h.history = append(h.history, Entry{Message: message, At: now})
	if len(h.history) > maxHistory {
		h.history = h.history[len(h.history)-maxHistory:]
	}
	h.mu.Unlock()

	if message != Clear {
		h.logger.Info("status", zap.String("message", message))
	}
}

// Current returns the latest message and when it was set
func (h *Holder) Current() (string, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.message, h.updated
}

// History returns the most recent status changes, oldest first
func (h *Holder) History() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.history))
	copy(out, h.history)
	return out
}
