package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/storage"
	"github.com/dshills/linkarchiver/pkg/types"
)

// ErrClosed is returned by Start, ArchiveText and Flush after Close
var ErrClosed = errors.New("pipeline closed")

func (p *Pipeline) isClosed() bool {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	return p.closed
}

// Start runs the auto-flush loop in the background until ctx is cancelled
// or Close is called. Without it a pending batch waits for the next
// ArchiveText call.
func (p *Pipeline) Start(ctx context.Context) error {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.loopDone != nil {
		return nil // Already running
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.loopCancel = cancel
	p.loopDone = done

	go func() {
		defer close(done)
		p.runLoop(ctx)
	}()
	return nil
}

func (p *Pipeline) runLoop(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.autoFlush(ctx)
		}
	}
}

// autoFlush flushes a due batch unless another run holds the lock
func (p *Pipeline) autoFlush(ctx context.Context) {
	if !p.lock.TryAcquire() {
		p.logger.Debug("pipeline busy, skipping auto-flush tick")
		return
	}
	defer p.lock.Release()

	cfg := p.config.Current()
	if cfg == nil || cfg.Validate() != nil {
		return
	}

	result := types.NewResult()
	if err := p.maybeFlushLocked(ctx, cfg, false, result); err != nil {
		p.logger.Warn("auto-flush failed", zap.Error(err))
	}
	if result.Flushed {
		p.logger.Info("auto-flushed batch",
			zap.Int("urls", result.Submitted),
			zap.Bool("timed_out", result.TimedOut))
	}
	p.metrics.SetPending(p.scheduler.Len())
}

// Close stops the auto-flush loop and writes the dedup cache to storage.
// URLs still pending are not submitted; call Flush first to send them.
// Archive calls made after Close fail with ErrClosed.
func (p *Pipeline) Close(ctx context.Context) error {
	p.loopMu.Lock()
	if p.closed {
		p.loopMu.Unlock()
		return nil
	}
	p.closed = true
	cancel, done := p.loopCancel, p.loopDone
	p.loopMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := p.lock.Acquire(ctx); err != nil {
		return err
	}
	defer p.lock.Release()

	if pending := p.scheduler.Len(); pending > 0 {
		p.logger.Warn("closing with unsubmitted links", zap.Int("pending", pending))
	}
	return p.snapshot(ctx)
}

// snapshot persists every fingerprint in the dedup cache
func (p *Pipeline) snapshot(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	entries := p.cache.Snapshot()
	records := make([]storage.FingerprintRecord, len(entries))
	now := p.now()
	for i, e := range entries {
		records[i] = storage.FingerprintRecord{Fingerprint: e.Fingerprint, URL: e.URL, SubmittedAt: now}
	}
	inserted, err := p.store.SaveFingerprints(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to snapshot dedup cache: %w", err)
	}
	p.logger.Debug("snapshotted dedup cache", zap.Int("total", len(records)), zap.Int("new", inserted))
	return nil
}

// Snapshot describes the pipeline state for status displays
type Snapshot struct {
	PendingURLs   []string
	DedupSize     int
	Authenticated bool
	LastFlush     time.Time // Zero when nothing was flushed yet
	Stats         *storage.Stats
}

// Status reports the pending batch and session state. Storage statistics
// are included when storage is configured.
func (p *Pipeline) Status(ctx context.Context) (*Snapshot, error) {
	if err := p.lock.Acquire(ctx); err != nil {
		return nil, err
	}
	snap := &Snapshot{
		PendingURLs: p.scheduler.Snapshot(),
		DedupSize:   p.cache.Len(),
	}
	if last, ok := p.scheduler.LastFlush(); ok {
		snap.LastFlush = last
	}
	if cfg := p.config.Current(); cfg != nil {
		snap.Authenticated = p.sessions.Authenticated(cfg)
	}
	p.lock.Release()

	if p.store != nil {
		stats, err := p.store.GetStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read storage stats: %w", err)
		}
		snap.Stats = stats
	}
	return snap, nil
}

// History returns the most recent submissions, newest first. It returns nil
// without storage.
func (p *Pipeline) History(ctx context.Context, limit int) ([]*storage.Submission, error) {
	if p.store == nil {
		return nil, nil
	}
	return p.store.ListSubmissions(ctx, limit)
}
