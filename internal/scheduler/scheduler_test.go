package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"ouralink/internal/model"
)

type fakeRefresher struct {
	mu         sync.Mutex
	refreshes  int
	categories []model.Category
	snap       *model.Snapshot
}

func (f *fakeRefresher) Refresh(ctx context.Context) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.snap, nil
}

func (f *fakeRefresher) RefreshCategory(ctx context.Context, category model.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = append(f.categories, category)
	return nil
}

func (f *fakeRefresher) TrimHistory() {}

func (f *fakeRefresher) categoryCalls() []model.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Category(nil), f.categories...)
}

type fakePublisher struct {
	published atomic.Int32
}

func (f *fakePublisher) PublishSnapshot(*model.Snapshot) {
	f.published.Add(1)
}

type fakeArchiver struct {
	recorded atomic.Int32
}

func (f *fakeArchiver) RecordSnapshot(context.Context, *model.Snapshot) error {
	f.recorded.Add(1)
	return nil
}

func (f *fakeArchiver) DeleteBefore(context.Context, string) (int64, error) {
	return 0, nil
}

func TestRunRefreshFansOut(t *testing.T) {
	refresher := &fakeRefresher{snap: &model.Snapshot{}}
	publisher := &fakePublisher{}
	archiver := &fakeArchiver{}

	s := New(refresher, time.Hour, zap.NewNop().Sugar())
	s.AddPublisher(publisher)
	s.SetArchiver(archiver)

	s.runRefresh(context.Background())

	if publisher.published.Load() != 1 {
		t.Fatalf("expected 1 publish, got %d", publisher.published.Load())
	}
	if archiver.recorded.Load() != 1 {
		t.Fatalf("expected 1 archive, got %d", archiver.recorded.Load())
	}
}

func TestKickCategoryCoalescesBursts(t *testing.T) {
	refresher := &fakeRefresher{snap: &model.Snapshot{}}
	s := New(refresher, time.Hour, zap.NewNop().Sugar())

	// A burst of deliveries for the same category collapses into one fetch.
	s.KickCategory(model.CategorySleep)
	s.KickCategory(model.CategorySleep)
	s.KickCategory(model.CategorySleep)
	s.KickCategory(model.CategoryActivity)

	deadline := time.After(debounceDelay + time.Second)
	for {
		calls := refresher.categoryCalls()
		if len(calls) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("debounced refreshes never fired, got %v", calls)
		case <-time.After(50 * time.Millisecond):
		}
	}

	calls := refresher.categoryCalls()
	if len(calls) != 2 {
		t.Fatalf("expected exactly 2 refreshes, got %v", calls)
	}
	seen := map[model.Category]bool{}
	for _, c := range calls {
		seen[c] = true
	}
	if !seen[model.CategorySleep] || !seen[model.CategoryActivity] {
		t.Fatalf("expected one refresh per distinct category, got %v", calls)
	}
}

type blockingRefresher struct {
	started chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (b *blockingRefresher) Refresh(ctx context.Context) (*model.Snapshot, error) {
	return &model.Snapshot{}, nil
}

func (b *blockingRefresher) RefreshCategory(ctx context.Context, category model.Category) error {
	close(b.started)
	<-b.release
	close(b.done)
	return nil
}

func (b *blockingRefresher) TrimHistory() {}

func TestStopWaitsForInFlightKick(t *testing.T) {
	refresher := &blockingRefresher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	s := New(refresher, time.Hour, zap.NewNop().Sugar())

	s.KickCategory(model.CategorySleep)

	select {
	case <-refresher.started:
	case <-time.After(debounceDelay + time.Second):
		t.Fatal("debounced refresh never started")
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(refresher.release)
	}()

	s.Stop()

	select {
	case <-refresher.done:
	default:
		t.Fatal("Stop returned while a refresh was still in flight")
	}
}

func TestStopCancelsPendingKicks(t *testing.T) {
	refresher := &fakeRefresher{snap: &model.Snapshot{}}
	s := New(refresher, time.Hour, zap.NewNop().Sugar())

	s.KickCategory(model.CategorySleep)
	s.Stop()

	time.Sleep(debounceDelay + 500*time.Millisecond)
	if calls := refresher.categoryCalls(); len(calls) != 0 {
		t.Fatalf("expected pending kick to be cancelled, got %v", calls)
	}
}
