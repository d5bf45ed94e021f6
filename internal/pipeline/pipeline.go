package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/batch"
	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/dedup"
	"github.com/dshills/linkarchiver/internal/extractor"
	"github.com/dshills/linkarchiver/internal/filter"
	"github.com/dshills/linkarchiver/internal/metrics"
	"github.com/dshills/linkarchiver/internal/session"
	"github.com/dshills/linkarchiver/internal/status"
	"github.com/dshills/linkarchiver/internal/storage"
	"github.com/dshills/linkarchiver/internal/submitter"
	"github.com/dshills/linkarchiver/pkg/types"
)

// DefaultTickInterval is how often the auto-flush loop checks the batch
const DefaultTickInterval = time.Second

// Remote is the archiving service: login handshake plus the add call
type Remote interface {
	session.Authenticator
	submitter.Adder
}

// Options wires a Pipeline. Config and Remote are required.
type Options struct {
	Config  config.Provider
	Remote  Remote
	Storage storage.Storage // Optional; persists fingerprints and history
	Status  status.Reporter // Optional
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	// TickInterval overrides DefaultTickInterval for the auto-flush loop
	TickInterval time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Pipeline owns the batch, the dedup cache and the session, and runs the
// extract -> filter -> batch -> flush sequence under one lock
type Pipeline struct {
	config  config.Provider
	store   storage.Storage
	status  status.Reporter
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	tick    time.Duration

	extractor *extractor.Extractor
	chain     *filter.Chain
	cache     *dedup.Cache
	scheduler *batch.Scheduler
	sessions  *session.Manager
	submitter *submitter.Submitter

	lock *runLock

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	closed     bool
}

// New creates a Pipeline. It performs no I/O; call Restore to load
// persisted fingerprints.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: config provider is required")
	}
	if opts.Remote == nil {
		return nil, errors.New("pipeline: remote is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := opts.Status
	if reporter == nil {
		reporter = status.Nop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	cache := dedup.New()
	scheduler := batch.NewScheduler()

	return &Pipeline{
		config:    opts.Config,
		store:     opts.Storage,
		status:    reporter,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       now,
		tick:      tick,
		extractor: extractor.New(logger.Named("extractor"), opts.Metrics),
		chain:     filter.New(cache, scheduler),
		cache:     cache,
		scheduler: scheduler,
		sessions:  session.NewManager(opts.Remote, logger.Named("session"), opts.Metrics),
		submitter: submitter.New(opts.Remote, cache, logger.Named("submitter"), opts.Metrics),
		lock:      newRunLock(),
	}, nil
}

// Restore loads persisted fingerprints into the dedup cache and returns how
// many were added. It is a no-op without storage.
func (p *Pipeline) Restore(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, nil
	}
	records, err := p.store.LoadFingerprints(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore fingerprints: %w", err)
	}

	entries := make([]dedup.Entry, len(records))
	for i, r := range records {
		entries[i] = dedup.Entry{Fingerprint: r.Fingerprint, URL: r.URL}
	}
	added := p.cache.Restore(entries)
	p.logger.Info("restored dedup cache", zap.Int("fingerprints", added))
	return added, nil
}

// validConfig returns the current settings or reports why they are unusable
func (p *Pipeline) validConfig() (*config.Config, error) {
	cfg := p.config.Current()
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration loaded", types.ErrConfigInvalid)
	}
	if err := cfg.Validate(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			p.status.Report(verr.Message)
		}
		return nil, err
	}
	return cfg, nil
}

// ArchiveText extracts links from Markdown text, filters them into the batch
// and flushes when due. force flushes any non-empty batch immediately.
//
// A submission timeout is not an error; it sets Result.TimedOut. After Close
// it returns ErrClosed.
func (p *Pipeline) ArchiveText(ctx context.Context, text string, force bool) (*types.Result, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	cfg, err := p.validConfig()
	if err != nil {
		return nil, err
	}

	if err := p.lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer p.lock.Release()

	// Close may have finished while this call waited for the lock
	if p.isClosed() {
		return nil, ErrClosed
	}

	result := types.NewResult()
	p.collect(text, cfg, result)

	err = p.maybeFlushLocked(ctx, cfg, force, result)
	result.Pending = p.scheduler.Len()
	p.metrics.SetPending(result.Pending)
	return result, err
}

// ArchiveDocument converts text from format to Markdown and archives it
func (p *Pipeline) ArchiveDocument(ctx context.Context, text string, format extractor.Format, force bool) (*types.Result, error) {
	markdown, err := extractor.ToMarkdown(text, format)
	if err != nil {
		return nil, err
	}
	return p.ArchiveText(ctx, markdown, force)
}

// Flush submits the pending batch now. An empty batch is not submitted.
func (p *Pipeline) Flush(ctx context.Context) (*types.Result, error) {
	return p.ArchiveText(ctx, "", true)
}

// collect runs extraction and filtering, appending accepted URLs
func (p *Pipeline) collect(text string, cfg *config.Config, result *types.Result) {
	for candidate := range p.extractor.Candidates(text) {
		result.Extracted++

		decision := p.chain.Check(candidate, cfg)
		if !decision.Accept {
			result.Rejected[decision.Reason]++
			p.metrics.LinkRejected(decision.Reason)
			p.logger.Debug("rejected link",
				zap.String("url", candidate.Raw),
				zap.String("reason", string(decision.Reason)))
			continue
		}

		// Appended one at a time so a repeat later in the same text is seen as pending
		p.scheduler.Append([]string{candidate.Raw}, p.now())
		result.Accepted++
		p.metrics.LinkAccepted()
		p.logger.Debug("queued link", zap.String("url", candidate.Raw))
	}
}

func (p *Pipeline) maybeFlushLocked(ctx context.Context, cfg *config.Config, force bool, result *types.Result) error {
	if !p.scheduler.ShouldFlush(force, p.now(), cfg.FlushInterval()) {
		return nil
	}
	return p.flushLocked(ctx, cfg, result)
}

// flushLocked logs in if needed, drains the batch and submits it. The caller
// holds the run lock.
func (p *Pipeline) flushLocked(ctx context.Context, cfg *config.Config, result *types.Result) error {
	sess, err := p.ensureSession(ctx, cfg)
	if err != nil {
		// Nothing drained yet; the batch stays pending until the next due flush
		p.scheduler.MarkAttempt(p.now())
		return err
	}

	urls := p.scheduler.Drain(p.now())
	result.Flushed = true
	result.Submitted = len(urls)
	p.status.Report(status.Archiving(len(urls)))

	outcome, err := p.submitter.Submit(ctx, urls, sess, cfg)
	if errors.Is(err, types.ErrSessionExpired) {
		p.logger.Info("session expired, logging in again")
		p.sessions.Invalidate()

		sess, err = p.ensureSession(ctx, cfg)
		if err != nil {
			// Nothing reached the server; keep the URLs for the next flush
			p.scheduler.Append(urls, p.now())
			p.scheduler.MarkAttempt(p.now())
			result.Flushed = false
			result.Submitted = 0
			return err
		}
		p.status.Report(status.Archiving(len(urls)))

		outcome, err = p.submitter.Submit(ctx, urls, sess, cfg)
		if errors.Is(err, types.ErrSessionExpired) {
			p.metrics.Submission(types.OutcomeFailed)
			err = fmt.Errorf("%w: %w", types.ErrSubmissionFailed, err)
		}
	}

	result.TimedOut = outcome == types.OutcomeTimeout
	result.SubmissionID = p.recordSubmission(ctx, urls, outcome, err)

	if err != nil {
		p.status.Report(status.SubmissionFailed)
		return err
	}
	p.status.Report(status.Clear)
	return nil
}

func (p *Pipeline) ensureSession(ctx context.Context, cfg *config.Config) (session.Session, error) {
	if !p.sessions.Authenticated(cfg) {
		p.status.Report(status.LoggingIn)
	}
	sess, err := p.sessions.Ensure(ctx, cfg)
	if err != nil {
		p.status.Report(status.LoginFailed)
		return session.Session{}, err
	}
	return sess, nil
}

// recordSubmission writes the history row and, on success, the new
// fingerprints in one transaction. Storage failures are logged only.
func (p *Pipeline) recordSubmission(ctx context.Context, urls types.Batch, outcome types.SubmitOutcome, subErr error) string {
	id := uuid.NewString()
	if p.store == nil {
		return id
	}

	now := p.now()
	sub := &storage.Submission{ID: id, URLs: urls, Outcome: outcome, CreatedAt: now}
	if subErr != nil {
		msg := subErr.Error()
		sub.Error = &msg
	}

	var records []storage.FingerprintRecord
	if outcome == types.OutcomeSubmitted {
		records = make([]storage.FingerprintRecord, len(urls))
		for i, u := range urls {
			records[i] = storage.FingerprintRecord{Fingerprint: types.NewFingerprint(u), URL: u, SubmittedAt: now}
		}
	}

	if err := p.persist(ctx, sub, records); err != nil {
		p.logger.Warn("failed to persist submission", zap.String("submission_id", id), zap.Error(err))
	}
	return id
}

func (p *Pipeline) persist(ctx context.Context, sub *storage.Submission, records []storage.FingerprintRecord) error {
	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := tx.RecordSubmission(ctx, sub); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.SaveFingerprints(ctx, records); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
