package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ouralink/internal/model"
)

const (
	trimInterval     = 6 * time.Hour
	debounceDelay    = 2 * time.Second
	refreshTimeout   = 2 * time.Minute
	retentionDays    = 365
	retentionDayOnly = "2006-01-02"
)

// Refresher is the coordinator surface the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) (*model.Snapshot, error)
	RefreshCategory(ctx context.Context, category model.Category) error
	TrimHistory()
}

// Publisher receives each successfully refreshed snapshot.
type Publisher interface {
	PublishSnapshot(snap *model.Snapshot)
}

// Archiver persists snapshots and prunes old rows.
type Archiver interface {
	RecordSnapshot(ctx context.Context, snap *model.Snapshot) error
	DeleteBefore(ctx context.Context, day string) (int64, error)
}

// Scheduler owns the periodic poll loop: a refresh tick on the configured
// interval, a history trim every six hours, and a per-category debounce for
// webhook-triggered refreshes so delivery bursts collapse into one fetch.
type Scheduler struct {
	coordinator Refresher
	publishers  []Publisher
	archiver    Archiver
	interval    time.Duration
	log         *zap.SugaredLogger

	mu      sync.Mutex
	pending map[model.Category]*time.Timer

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

func New(coordinator Refresher, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		interval:    interval,
		log:         log,
		pending:     make(map[model.Category]*time.Timer),
	}
}

// AddPublisher registers a snapshot consumer; call before Start.
func (s *Scheduler) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// SetArchiver registers the persistence sink; call before Start.
func (s *Scheduler) SetArchiver(a Archiver) {
	s.archiver = a
}

// Start launches the poll loop and runs one refresh immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.baseCtx = ctx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRefresh(ctx)

		refreshTicker := time.NewTicker(s.interval)
		defer refreshTicker.Stop()
		trimTicker := time.NewTicker(trimInterval)
		defer trimTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-refreshTicker.C:
				s.runRefresh(ctx)
			case <-trimTicker.C:
				s.runTrim(ctx)
			}
		}
	}()
}

// Stop cancels the loop, flushes pending debounce timers and waits for
// in-flight work, including a debounce callback that has already fired.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	for category, timer := range s.pending {
		// A false Stop means the callback fired; it owns its own Done.
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.pending, category)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// KickCategory schedules a debounced selective refresh for the category.
// Repeated kicks within the debounce window reset the timer. The refresh
// runs on the scheduler's own context, outliving the triggering request.
func (s *Scheduler) KickCategory(category model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.pending[category]; ok {
		timer.Reset(debounceDelay)
		return
	}
	s.wg.Add(1)
	s.pending[category] = time.AfterFunc(debounceDelay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.pending, category)
		s.mu.Unlock()

		base := s.baseCtx
		if base == nil {
			base = context.Background()
		}
		refreshCtx, cancel := context.WithTimeout(base, refreshTimeout)
		defer cancel()
		if err := s.coordinator.RefreshCategory(refreshCtx, category); err != nil {
			s.log.Errorw("webhook-triggered refresh failed", "category", category, "error", err)
		}
	})
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snap, err := s.coordinator.Refresh(refreshCtx)
	if err != nil {
		s.log.Errorw("scheduled refresh failed", "error", err)
		return
	}

	for _, publisher := range s.publishers {
		publisher.PublishSnapshot(snap)
	}
	if s.archiver != nil {
		if err := s.archiver.RecordSnapshot(refreshCtx, snap); err != nil {
			s.log.Errorw("snapshot archive failed", "error", err)
		}
	}
}

func (s *Scheduler) runTrim(ctx context.Context) {
	s.coordinator.TrimHistory()
	s.log.Debug("in-memory history trimmed")

	if s.archiver == nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format(retentionDayOnly)
	deleted, err := s.archiver.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.log.Errorw("history retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.log.Infow("history retention sweep", "deleted", deleted, "cutoff", cutoff)
	}
}
