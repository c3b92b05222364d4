package workspace

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/edrak/internal/models"
)

// ApplyFunc processes one snapshot on behalf of a Follower.
type ApplyFunc func(ctx context.Context, snap *models.Workspace) error

// Follower hands the latest published snapshot to fn on a background
// goroutine. Snapshots that arrive while fn is busy are coalesced: only the
// newest one is processed next. Errors from fn are logged and dropped.
//
// Observe never blocks, so a slow disk or index cannot delay the mutation
// that produced the snapshot.
type Follower struct {
	name    string
	fn      ApplyFunc
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending *models.Workspace
	queued  uint64 // sequence of the newest observed snapshot
	done    uint64 // sequence of the newest processed snapshot
	waiters []flushWaiter

	wake    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

type flushWaiter struct {
	seq uint64
	ch  chan struct{}
}

// NewFollower starts a follower. timeout bounds each call to fn; zero
// means no bound.
func NewFollower(name string, fn ApplyFunc, timeout time.Duration, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Follower{
		name:    name,
		fn:      fn,
		timeout: timeout,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.run()
	return f
}

// Observe records snap as the newest snapshot. It matches the Observer
// signature so a follower can be passed to Store.Subscribe.
func (f *Follower) Observe(_ Event, snap *models.Workspace) {
	f.Submit(snap)
}

// Submit records snap as the newest snapshot and wakes the worker.
func (f *Follower) Submit(snap *models.Workspace) {
	if f.closed.Load() {
		return
	}
	f.mu.Lock()
	f.pending = snap
	f.queued++
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every snapshot submitted before the call has been
// processed (or superseded by a processed newer one).
func (f *Follower) Flush(ctx context.Context) error {
	f.mu.Lock()
	if f.done >= f.queued {
		f.mu.Unlock()
		return nil
	}
	w := flushWaiter{seq: f.queued, ch: make(chan struct{})}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-f.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close processes any pending snapshot and stops the worker.
func (f *Follower) Close() {
	if f.closed.CompareAndSwap(false, true) {
		close(f.stopCh)
	}
	<-f.stopped
}

func (f *Follower) run() {
	defer close(f.stopped)
	for {
		select {
		case <-f.wake:
			f.drain()
		case <-f.stopCh:
			f.drain()
			return
		}
	}
}

func (f *Follower) drain() {
	for {
		f.mu.Lock()
		snap, seq := f.pending, f.queued
		f.pending = nil
		f.mu.Unlock()
		if snap == nil {
			return
		}

		f.apply(snap)

		f.mu.Lock()
		f.done = seq
		kept := f.waiters[:0]
		for _, w := range f.waiters {
			if w.seq <= seq {
				close(w.ch)
			} else {
				kept = append(kept, w)
			}
		}
		f.waiters = kept
		f.mu.Unlock()
	}
}

func (f *Follower) apply(snap *models.Workspace) {
	ctx := context.Background()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	if err := f.fn(ctx, snap); err != nil {
		f.logger.Warn(f.name+": apply failed",
			slog.Int("pages", len(snap.Pages)),
			slog.String("error", err.Error()))
	}
}
