// Package submitter posts a drained batch and reconciles the dedup cache.
//
// Outcomes:
//
//	submitted  every URL's fingerprint is recorded
//	timeout    the server may still be working; nothing recorded, no error
//	failed     the error is returned; nothing recorded
//	skipped    empty batch, no request made
package submitter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/archivebox"
	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/metrics"
	"github.com/dshills/linkarchiver/internal/session"
	"github.com/dshills/linkarchiver/pkg/types"
)

// Adder sends URLs to the archiving service
type Adder interface {
	Add(ctx context.Context, cfg *config.Config, sessionID string, urls []string) error
}

// Recorder remembers submitted URLs
type Recorder interface {
	RecordURL(url string) types.Fingerprint
}

// Submitter performs one add call per batch
type Submitter struct {
	adder   Adder
	cache   Recorder
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Submitter
func New(adder Adder, cache Recorder, logger *zap.Logger, m *metrics.Metrics) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{adder: adder, cache: cache, logger: logger, metrics: m}
}

// Submit posts batch under sess. A rejected session returns an error
// wrapping types.ErrSessionExpired so the caller can log in again; other
// failures wrap types.ErrSubmissionFailed.
func (s *Submitter) Submit(ctx context.Context, batch types.Batch, sess session.Session, cfg *config.Config) (types.SubmitOutcome, error) {
	if len(batch) == 0 {
		return types.OutcomeSkipped, nil
	}

	s.logger.Info("submitting batch", zap.Int("urls", len(batch)))
	err := s.adder.Add(ctx, cfg, sess.ID, batch)

	switch {
	case err == nil:
		for _, u := range batch {
			s.cache.RecordURL(u)
		}
		s.metrics.Submission(types.OutcomeSubmitted)
		return types.OutcomeSubmitted, nil

	case archivebox.IsTimeout(err):
		// ArchiveBox answers only after archiving; a slow reply is normal
		s.logger.Debug("submission timed out, assuming accepted", zap.Int("urls", len(batch)))
		s.metrics.Submission(types.OutcomeTimeout)
		return types.OutcomeTimeout, nil

	case errors.Is(err, types.ErrSessionExpired):
		s.logger.Info("session rejected by ArchiveBox")
		return types.OutcomeFailed, err

	default:
		s.logger.Error("submission failed", zap.Int("urls", len(batch)), zap.Error(err))
		s.metrics.Submission(types.OutcomeFailed)
		return types.OutcomeFailed, fmt.Errorf("%w: %w", types.ErrSubmissionFailed, err)
	}
}
