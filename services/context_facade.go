package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"vitaLogAPI/internal/activity"
	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/internal/profile"
	"vitaLogAPI/internal/weeklycontext"
)

// maxUpdateAttempts bounds the optimistic-lock retry loop. After this many
// lost races the caller gets ErrUpdateConflict instead of spinning forever.
const maxUpdateAttempts = 5

// DailyContextStore is the cache surface the facade mutates.
type DailyContextStore interface {
	Get(ctx context.Context, userID uuid.UUID, date time.Time) (*dailycontext.Document, int, error)
	Insert(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document) error
	CompareAndSwap(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document, expectedVersion int) (int, error)
	Upsert(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document) error
	Delete(ctx context.Context, userID uuid.UUID, date time.Time) error
}

// WeeklyContextStore is the wholesale-replace surface for weekly documents.
type WeeklyContextStore interface {
	Get(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*weeklycontext.Document, error)
	Replace(ctx context.Context, userID uuid.UUID, weekStart time.Time, doc *weeklycontext.Document) error
}

// ActivitySource reads raw rows for rebuilds and weekly generation.
type ActivitySource interface {
	DayRowsForDate(ctx context.Context, userID uuid.UUID, date time.Time) (activity.DayRows, error)
}

// ProfileSource seeds the denormalized profile snapshot.
type ProfileSource interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error)
}

// ContextFacade is the single entry point for reading and mutating context
// documents. It hides cache population, optimistic-concurrency retries and
// the regenerate-from-source fallback from every caller.
type ContextFacade struct {
	daily    DailyContextStore
	weekly   WeeklyContextStore
	source   ActivitySource
	profiles ProfileSource
	engine   *AggregationEngine
}

func NewContextFacade(daily DailyContextStore, weekly WeeklyContextStore, source ActivitySource, profiles ProfileSource, engine *AggregationEngine) *ContextFacade {
	return &ContextFacade{
		daily:    daily,
		weekly:   weekly,
		source:   source,
		profiles: profiles,
		engine:   engine,
	}
}

// GetOrCreateContext returns the cached daily context, seeding an empty but
// valid document at version 1 on first access. A storage read failure falls
// back to full regeneration from the activity store rather than surfacing an
// error; only a missing user profile propagates.
func (f *ContextFacade) GetOrCreateContext(ctx context.Context, userID uuid.UUID, date time.Time) (*dailycontext.Document, int, error) {
	doc, version, err := f.daily.Get(ctx, userID, date)
	if err == nil {
		return doc, version, nil
	}

	if !errors.Is(err, ErrContextNotFound) {
		log.Printf("ContextFacade: cache read failed for %s/%s, regenerating from source: %v",
			userID, date.Format(dailycontext.DateFormat), err)
		contextRebuilds.WithLabelValues("fallback").Inc()
		doc, err := f.regenerate(ctx, userID, date)
		if err != nil {
			return nil, 0, err
		}
		return doc, 1, nil
	}

	p, err := f.profiles.GetUserByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot seed daily context: %w", err)
	}

	doc = dailycontext.New(userID, date, p.Snapshot())
	if err := f.daily.Insert(ctx, userID, date, doc); err != nil {
		// Unique-key race: another request seeded this date first.
		if doc2, version2, err2 := f.daily.Get(ctx, userID, date); err2 == nil {
			return doc2, version2, nil
		}
		return nil, 0, fmt.Errorf("failed to seed daily context: %w", err)
	}
	return doc, 1, nil
}

// UpdateActivity folds one activity update into the daily context through a
// bounded read-apply-CAS loop. Each successful write bumps the row version by
// exactly one; losers of a race re-read and re-apply against the new state.
func (f *ContextFacade) UpdateActivity(ctx context.Context, userID uuid.UUID, upd activity.Update, date time.Time) (*dailycontext.Document, int, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, version, err := f.GetOrCreateContext(ctx, userID, date)
		if err != nil {
			return nil, 0, err
		}

		doc.TodayProgress.Apply(upd)
		doc.Touch(upd.ActivityType())

		newVersion, err := f.daily.CompareAndSwap(ctx, userID, date, doc, version)
		if err == nil {
			return doc, newVersion, nil
		}
		if !errors.Is(err, ErrUpdateConflict) {
			return nil, 0, err
		}
		contextUpdateConflicts.Inc()
		log.Printf("ContextFacade: version conflict updating %s context for %s (attempt %d)",
			upd.ActivityType(), userID, attempt+1)
	}
	return nil, 0, ErrUpdateConflict
}

// RemoveActivity undoes a logged activity inside the cached document. When an
// expected entry is missing the cache has drifted from the activity store, so
// instead of silently no-opping the facade rebuilds the day from source. The
// supplementName argument is only consulted for supplement removals, whose
// cached entries are keyed by name rather than record id.
func (f *ContextFacade) RemoveActivity(ctx context.Context, userID uuid.UUID, typ activity.Type, recordID uuid.UUID, supplementName string, date time.Time) (*dailycontext.Document, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		doc, version, err := f.GetOrCreateContext(ctx, userID, date)
		if err != nil {
			return nil, err
		}

		removed := true
		switch typ {
		case activity.TypeMeal:
			removed = doc.TodayProgress.RemoveMeal(recordID)
		case activity.TypeExercise:
			removed = doc.TodayProgress.RemoveExercise(recordID)
		case activity.TypeWater:
			doc.TodayProgress.Apply(activity.WaterUpdate{Glasses: 0})
		case activity.TypeSteps:
			doc.TodayProgress.Apply(activity.StepsUpdate{Count: 0})
		case activity.TypeWeight:
			doc.TodayProgress.Apply(activity.WeightUpdate{Kilograms: nil})
		case activity.TypeSleep:
			doc.TodayProgress.Apply(activity.SleepUpdate{Hours: nil})
		case activity.TypeSupplement:
			removed = doc.TodayProgress.RemoveSupplement(supplementName)
		default:
			return nil, fmt.Errorf("unknown activity type %q", typ)
		}

		if !removed {
			log.Printf("ContextFacade: %s record %s missing from cached context for %s, rebuilding",
				typ, recordID, userID)
			contextRebuilds.WithLabelValues("drift").Inc()
			return f.RebuildContext(ctx, userID, date)
		}

		doc.Touch(typ)
		if _, err := f.daily.CompareAndSwap(ctx, userID, date, doc, version); err == nil {
			return doc, nil
		} else if !errors.Is(err, ErrUpdateConflict) {
			return nil, err
		}
		contextUpdateConflicts.Inc()
	}
	return nil, ErrUpdateConflict
}

// RebuildContext discards the cached row and recomputes the document from the
// activity store. The version history resets to 1. Exposed for drift recovery
// and as an administrative operation.
func (f *ContextFacade) RebuildContext(ctx context.Context, userID uuid.UUID, date time.Time) (*dailycontext.Document, error) {
	if err := f.daily.Delete(ctx, userID, date); err != nil {
		return nil, err
	}
	return f.regenerate(ctx, userID, date)
}

func (f *ContextFacade) regenerate(ctx context.Context, userID uuid.UUID, date time.Time) (*dailycontext.Document, error) {
	p, err := f.profiles.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cannot rebuild daily context: %w", err)
	}

	rows, err := f.source.DayRowsForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("activity store unavailable for rebuild: %w", err)
	}

	doc := f.engine.BuildDaily(userID, date, p.Snapshot(), rows)
	if err := f.daily.Upsert(ctx, userID, date, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetOrGenerateWeeklyContext serves the materialized weekly document,
// generating it on demand on a cache miss.
func (f *ContextFacade) GetOrGenerateWeeklyContext(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*weeklycontext.Document, error) {
	doc, err := f.weekly.Get(ctx, userID, weekStart)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrContextNotFound) {
		log.Printf("ContextFacade: weekly cache read failed for %s, regenerating: %v", userID, err)
	}
	return f.GenerateWeeklyContext(ctx, userID, weekStart)
}

// GenerateWeeklyContext re-aggregates the full seven-day window from the
// activity store and replaces the stored document wholesale.
func (f *ContextFacade) GenerateWeeklyContext(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*weeklycontext.Document, error) {
	p, err := f.profiles.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cannot generate weekly context: %w", err)
	}

	weekStart = weeklycontext.WeekStartOf(weekStart)
	days := make([]activity.DayRows, 0, 7)
	for i := 0; i < 7; i++ {
		day, err := f.source.DayRowsForDate(ctx, userID, weekStart.AddDate(0, 0, i))
		if err != nil {
			return nil, fmt.Errorf("activity store unavailable for weekly generation: %w", err)
		}
		days = append(days, day)
	}

	doc := f.engine.BuildWeekly(p, weekStart, days)
	if err := f.weekly.Replace(ctx, userID, weekStart, doc); err != nil {
		return nil, err
	}
	weeklyGenerations.Inc()
	return doc, nil
}
