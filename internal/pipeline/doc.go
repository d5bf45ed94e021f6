// Package pipeline runs the link archiving sequence end to end.
//
// A Pipeline owns every piece of mutable state: the pending batch, the dedup
// cache and the ArchiveBox session. Hosts (the CLI, the directory watcher,
// the MCP server) only hand it text.
//
// # Basic Usage
//
//	p, err := pipeline.New(pipeline.Options{
//	    Config:  provider,
//	    Remote:  archivebox.NewClient(logger),
//	    Storage: store,
//	    Status:  holder,
//	    Metrics: m,
//	    Logger:  logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close(ctx)
//
//	if _, err := p.Restore(ctx); err != nil {
//	    return err
//	}
//
//	res, err := p.ArchiveText(ctx, markdown, true)
//	fmt.Printf("%d accepted, %d submitted\n", res.Accepted, res.Submitted)
//
// # Sequence
//
// Each call runs these stages under one lock, so overlapping calls can never
// submit the same URL twice:
//
//  1. Validate: the settings snapshot is checked before any network call
//  2. Extract: Markdown inline links become candidate URLs
//  3. Filter: duplicates, private addresses and ignored domains are dropped
//  4. Batch: accepted URLs join the pending batch
//  5. Flush: when forced or due, log in if needed and submit the batch
//
// # Flushing
//
// A non-empty batch is flushed when the caller forces it or when more than
// the configured interval has passed since the previous flush. The first
// batch after startup is flushed immediately.
//
// Start runs a background loop that flushes a due batch even when no new
// text arrives. The loop never waits for the lock; a tick that finds the
// pipeline busy is skipped.
//
// # Failure Handling
//
//	login fails            batch kept, error returned
//	session rejected       log in again once and resubmit
//	submission times out   treated as sent, nothing recorded, no error
//	submission fails       batch dropped, error returned
//
// Only successful submissions reach the dedup cache. Close writes the cache
// to storage; Restore reads it back on the next start.
package pipeline
