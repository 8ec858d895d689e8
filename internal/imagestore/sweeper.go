package imagestore

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// RefLister returns the image references still owned by biometric records.
type RefLister interface {
	ImageRefs(ctx context.Context) ([]string, error)
}

// Sweeper periodically deletes image files no record references. Files
// younger than the grace period are kept so enrollments that saved their
// images but have not committed yet are never touched.
type Sweeper struct {
	store     *Store
	refs      RefLister
	interval  time.Duration
	grace     time.Duration
	logger    *zap.Logger
	scheduler *gocron.Scheduler
	now       func() time.Time
}

// NewSweeper creates a sweeper. Call Start to schedule it.
func NewSweeper(store *Store, refs RefLister, interval, grace time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		refs:     refs,
		interval: interval,
		grace:    grace,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules Sweep every interval.
func (s *Sweeper) Start() error {
	s.scheduler = gocron.NewScheduler(time.UTC)
	_, err := s.scheduler.Every(s.interval).SingletonMode().WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		removed, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("image sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			s.logger.Info("removed orphaned images", zap.Int("count", removed))
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling image sweep: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop cancels the schedule.
func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Sweep removes unreferenced files older than the grace period and returns
// how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	refs, err := s.refs.ImageRefs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing image references: %w", err)
	}
	live := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		live[ref] = struct{}{}
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for src, dir := range s.store.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ref := path.Join(string(src), entry.Name())
			if _, ok := live[ref]; ok {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := s.store.Delete(ref); err != nil {
				s.logger.Warn("failed to remove orphaned image", zap.String("ref", ref), zap.Error(err))
				continue
			}
			removed++
		}
	}
	return removed, nil
}
