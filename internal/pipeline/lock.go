package pipeline

import "context"

// runLock serializes pipeline runs. Unlike sync.Mutex, Acquire gives up when
// the context is cancelled, and TryAcquire lets the auto-flush loop skip a
// tick instead of queueing behind a running flush.
type runLock struct {
	sem chan struct{}
}

func newRunLock() *runLock {
	return &runLock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is held or ctx is done
func (l *runLock) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the lock only if it is free
func (l *runLock) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the lock. Only the holder may call it.
func (l *runLock) Release() {
	<-l.sem
}
