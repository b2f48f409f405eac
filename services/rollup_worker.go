package services

import (
	"context"
	"log"
	"time"

	"vitaLogAPI/internal/weeklycontext"
)

// RollupWorker materializes last week's weekly context for every active user
// once the week has closed, and runs the daily-context retention sweep. The
// trigger contract is simple: generate (user, previous_week_start) once per
// week per active user; the Exists check makes reruns cheap no-ops.
type RollupWorker struct {
	facade     *ContextFacade
	activities *ActivityService
	weekly     *WeeklyContextService
	daily      *DailyContextService

	retentionDays int
	stop          chan struct{}
}

func NewRollupWorker(facade *ContextFacade, activities *ActivityService, weekly *WeeklyContextService, daily *DailyContextService, retentionDays int) *RollupWorker {
	return &RollupWorker{
		facade:        facade,
		activities:    activities,
		weekly:        weekly,
		daily:         daily,
		retentionDays: retentionDays,
		stop:          make(chan struct{}),
	}
}

func (w *RollupWorker) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.runOnce(context.Background())
			case <-w.stop:
				return
			}
		}
	}()
}

func (w *RollupWorker) Stop() {
	close(w.stop)
}

func (w *RollupWorker) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	prevWeekStart := weeklycontext.WeekStartOf(time.Now().UTC()).AddDate(0, 0, -7)
	prevWeekEnd := prevWeekStart.AddDate(0, 0, 6)

	userIDs, err := w.activities.ActiveUserIDs(ctx, prevWeekStart, prevWeekEnd)
	if err != nil {
		log.Printf("RollupWorker: failed to list active users: %v", err)
		return
	}

	generated := 0
	for _, userID := range userIDs {
		exists, err := w.weekly.Exists(ctx, userID, prevWeekStart)
		if err != nil {
			log.Printf("RollupWorker: existence check failed for %s: %v", userID, err)
			continue
		}
		if exists {
			continue
		}
		if _, err := w.facade.GenerateWeeklyContext(ctx, userID, prevWeekStart); err != nil {
			log.Printf("RollupWorker: weekly generation failed for %s: %v", userID, err)
			continue
		}
		generated++
	}
	if generated > 0 {
		log.Printf("RollupWorker: materialized %d weekly context(s) for week of %s",
			generated, prevWeekStart.Format("2006-01-02"))
	}

	if w.retentionDays > 0 {
		purged, err := w.daily.PurgeOlderThan(ctx, w.retentionDays)
		if err != nil {
			log.Printf("RollupWorker: retention sweep failed: %v", err)
		} else if purged > 0 {
			log.Printf("RollupWorker: purged %d daily context(s) older than %d days", purged, w.retentionDays)
		}
	}
}
