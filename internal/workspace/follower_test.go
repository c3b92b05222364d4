package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/edrak/internal/models"
)

func TestFollower_FlushSeesLatest(t *testing.T) {
	var mu sync.Mutex
	var seen []*models.Workspace
	f := NewFollower("test", func(_ context.Context, snap *models.Workspace) error {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
		return nil
	}, 0, nil)
	defer f.Close()

	s := newTestStore()
	s.Subscribe(f.Observe)
	for i := 0; i < 10; i++ {
		s.AddPage(models.CategoryAreas)
	}

	require.NoError(t, f.Flush(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Same(t, s.Snapshot(), seen[len(seen)-1])
}

func TestFollower_CoalescesWhileBusy(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	f := NewFollower("slow", func(ctx context.Context, snap *models.Workspace) error {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil
	}, 0, nil)
	defer f.Close()

	f.Submit(models.NewWorkspace())
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 50; i++ {
		f.Submit(models.NewWorkspace())
	}
	close(release)

	require.NoError(t, f.Flush(context.Background()))
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestFollower_ObserveDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	f := NewFollower("stuck", func(ctx context.Context, _ *models.Workspace) error {
		<-block
		return nil
	}, 0, nil)
	defer func() {
		close(block)
		f.Close()
	}()

	s := newTestStore()
	s.Subscribe(f.Observe)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.AddPage(models.CategoryProjects)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutations blocked on a slow follower")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Flush(ctx), context.DeadlineExceeded)
}

func TestFollower_ErrorsAreLogged(t *testing.T) {
	f := NewFollower("failing", func(context.Context, *models.Workspace) error {
		return errors.New("disk full")
	}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.Submit(models.NewWorkspace())
	require.NoError(t, f.Flush(context.Background()))
	f.Close()

	// Submissions after Close are dropped.
	f.Submit(models.NewWorkspace())
	require.NoError(t, f.Flush(context.Background()))
}

func TestFollower_CloseDrainsPending(t *testing.T) {
	var last atomic.Pointer[models.Workspace]
	f := NewFollower("drain", func(_ context.Context, snap *models.Workspace) error {
		last.Store(snap)
		return nil
	}, 0, nil)

	ws := models.NewWorkspace()
	f.Submit(ws)
	f.Close()
	assert.Same(t, ws, last.Load())
}
