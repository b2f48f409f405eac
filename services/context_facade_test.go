package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitaLogAPI/internal/activity"
	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/internal/profile"
	"vitaLogAPI/internal/weeklycontext"
)

// ---------------------------------------------------------------------------
// In-memory fakes for the facade's store interfaces
// ---------------------------------------------------------------------------

type storedDaily struct {
	doc     *dailycontext.Document
	version int
}

type fakeDailyStore struct {
	mu   sync.Mutex
	rows map[string]*storedDaily

	getErr           error                        // injected once per Get until cleared
	beforeInsert     func(s *fakeDailyStore) bool // return true to reject the insert
	conflictsToServe int                          // force this many CAS losses before accepting
	casCalls         int
	deleteCalls      int
}

func newFakeDailyStore() *fakeDailyStore {
	return &fakeDailyStore{rows: map[string]*storedDaily{}}
}

func dayKey(userID uuid.UUID, date time.Time) string {
	return userID.String() + "/" + date.Format(dailycontext.DateFormat)
}

func copyDoc(doc *dailycontext.Document) *dailycontext.Document {
	raw, _ := json.Marshal(doc)
	var out dailycontext.Document
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (s *fakeDailyStore) Get(ctx context.Context, userID uuid.UUID, date time.Time) (*dailycontext.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		err := s.getErr
		s.getErr = nil
		return nil, 0, err
	}
	row, ok := s.rows[dayKey(userID, date)]
	if !ok {
		return nil, 0, ErrContextNotFound
	}
	return copyDoc(row.doc), row.version, nil
}

func (s *fakeDailyStore) Insert(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeInsert != nil && s.beforeInsert(s) {
		return errors.New("duplicate key value violates unique constraint")
	}
	key := dayKey(userID, date)
	if _, ok := s.rows[key]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	s.rows[key] = &storedDaily{doc: copyDoc(doc), version: 1}
	return nil
}

func (s *fakeDailyStore) CompareAndSwap(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document, expectedVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.conflictsToServe > 0 {
		s.conflictsToServe--
		return 0, ErrUpdateConflict
	}
	row, ok := s.rows[dayKey(userID, date)]
	if !ok || row.version != expectedVersion {
		return 0, ErrUpdateConflict
	}
	row.doc = copyDoc(doc)
	row.version++
	return row.version, nil
}

func (s *fakeDailyStore) Upsert(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[dayKey(userID, date)] = &storedDaily{doc: copyDoc(doc), version: 1}
	return nil
}

func (s *fakeDailyStore) Delete(ctx context.Context, userID uuid.UUID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	delete(s.rows, dayKey(userID, date))
	return nil
}

type fakeWeeklyStore struct {
	mu   sync.Mutex
	rows map[string]*weeklycontext.Document
}

func newFakeWeeklyStore() *fakeWeeklyStore {
	return &fakeWeeklyStore{rows: map[string]*weeklycontext.Document{}}
}

func (s *fakeWeeklyStore) Get(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*weeklycontext.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.rows[dayKey(userID, weekStart)]
	if !ok {
		return nil, ErrContextNotFound
	}
	return doc, nil
}

func (s *fakeWeeklyStore) Replace(ctx context.Context, userID uuid.UUID, weekStart time.Time, doc *weeklycontext.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[dayKey(userID, weekStart)] = doc
	return nil
}

type fakeActivitySource struct {
	mu   sync.Mutex
	days map[string]activity.DayRows
	err  error
}

func newFakeActivitySource() *fakeActivitySource {
	return &fakeActivitySource{days: map[string]activity.DayRows{}}
}

func (s *fakeActivitySource) setDay(userID uuid.UUID, date time.Time, rows activity.DayRows) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows.Date = date
	s.days[dayKey(userID, date)] = rows
}

func (s *fakeActivitySource) DayRowsForDate(ctx context.Context, userID uuid.UUID, date time.Time) (activity.DayRows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return activity.DayRows{}, s.err
	}
	rows, ok := s.days[dayKey(userID, date)]
	if !ok {
		return activity.DayRows{Date: date}, nil
	}
	return rows, nil
}

type fakeProfiles struct {
	profile *profile.UserProfile
	err     error
}

func (s *fakeProfiles) GetUserByID(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type facadeFixture struct {
	facade   *ContextFacade
	daily    *fakeDailyStore
	weekly   *fakeWeeklyStore
	source   *fakeActivitySource
	profiles *fakeProfiles
	userID   uuid.UUID
	date     time.Time
}

func newFacadeFixture() *facadeFixture {
	userID := uuid.New()
	daily := newFakeDailyStore()
	weekly := newFakeWeeklyStore()
	source := newFakeActivitySource()
	profiles := &fakeProfiles{profile: &profile.UserProfile{
		ID:         userID,
		Name:       "Test User",
		WeightGoal: profile.WeightGoalMaintain,
		TDEE:       2200,
	}}
	return &facadeFixture{
		facade:   NewContextFacade(daily, weekly, source, profiles, NewAggregationEngine()),
		daily:    daily,
		weekly:   weekly,
		source:   source,
		profiles: profiles,
		userID:   userID,
		date:     time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestGetOrCreateContextSeedsAtVersionOne(t *testing.T) {
	fx := newFacadeFixture()

	doc, version, err := fx.facade.GetOrCreateContext(context.Background(), fx.userID, fx.date)
	require.NoError(t, err)

	assert.Equal(t, 1, version)
	assert.Equal(t, "2025-03-12", doc.Date)
	assert.Equal(t, "Test User", doc.UserProfile.Name)
	assert.Empty(t, doc.TodayProgress.Meals)

	// Second read hits the cache, same version.
	_, version2, err := fx.facade.GetOrCreateContext(context.Background(), fx.userID, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 1, version2)
}

func TestGetOrCreateContextMissingProfile(t *testing.T) {
	fx := newFacadeFixture()
	fx.profiles.err = ErrUserNotFound

	_, _, err := fx.facade.GetOrCreateContext(context.Background(), fx.userID, fx.date)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetOrCreateContextSeedRaceFallsBackToRead(t *testing.T) {
	fx := newFacadeFixture()

	// Simulate another request seeding the row between our miss and our
	// insert: the hook lands a competing row and rejects ours with the
	// unique-key error, so the facade must re-read instead of failing.
	fx.daily.beforeInsert = func(s *fakeDailyStore) bool {
		pre := dailycontext.New(fx.userID, fx.date, fx.profiles.profile.Snapshot())
		pre.TodayProgress.WaterGlasses = 3
		s.rows[dayKey(fx.userID, fx.date)] = &storedDaily{doc: pre, version: 1}
		return true
	}

	doc, version, err := fx.facade.GetOrCreateContext(context.Background(), fx.userID, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, 3, doc.TodayProgress.WaterGlasses)
}

func TestGetOrCreateContextRegeneratesOnCacheError(t *testing.T) {
	fx := newFacadeFixture()
	fx.source.setDay(fx.userID, fx.date, activity.DayRows{
		Water: &activity.WaterRecord{Glasses: 5},
		Steps: &activity.StepRecord{Count: 7000},
	})
	fx.daily.getErr = errors.New("connection refused")

	doc, version, err := fx.facade.GetOrCreateContext(context.Background(), fx.userID, fx.date)
	require.NoError(t, err)

	assert.Equal(t, 1, version)
	assert.Equal(t, 5, doc.TodayProgress.WaterGlasses)
	assert.Equal(t, 7000, doc.TodayProgress.Steps)
}

func TestUpdateActivityBumpsVersionByOne(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	doc, version, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.WaterUpdate{Glasses: 4}, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 2, version, "seed is v1, first update lands at v2")
	assert.Equal(t, 4, doc.TodayProgress.WaterGlasses)

	doc, version, err = fx.facade.UpdateActivity(ctx, fx.userID, activity.StepsUpdate{Count: 9500}, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.Equal(t, 9500, doc.TodayProgress.Steps)
	assert.Equal(t, 4, doc.TodayProgress.WaterGlasses, "earlier update survives")
	assert.Equal(t, activity.TypeSteps, doc.Metadata.LastActivityType)
}

func TestUpdateActivityRetriesThroughConflict(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	_, _, err := fx.facade.GetOrCreateContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)

	fx.daily.conflictsToServe = 2

	doc, version, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.WaterUpdate{Glasses: 6}, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, 6, doc.TodayProgress.WaterGlasses)
	assert.Equal(t, 3, fx.daily.casCalls, "two losses plus the winning attempt")
}

func TestUpdateActivityGivesUpAfterBoundedRetries(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	_, _, err := fx.facade.GetOrCreateContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)

	fx.daily.conflictsToServe = maxUpdateAttempts + 1

	_, _, err = fx.facade.UpdateActivity(ctx, fx.userID, activity.WaterUpdate{Glasses: 6}, fx.date)
	assert.ErrorIs(t, err, ErrUpdateConflict)
	assert.Equal(t, maxUpdateAttempts, fx.daily.casCalls)
}

func TestConcurrentUpdatesBothSurvive(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	_, _, err := fx.facade.GetOrCreateContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.WaterUpdate{Glasses: 8}, fx.date)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.StepsUpdate{Count: 11000}, fx.date)
		assert.NoError(t, err)
	}()
	wg.Wait()

	doc, version, err := fx.facade.GetOrCreateContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 3, version, "two successful writes on top of the seed")
	assert.Equal(t, 8, doc.TodayProgress.WaterGlasses)
	assert.Equal(t, 11000, doc.TodayProgress.Steps)
}

func TestRemoveActivityMealRoundTrip(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()
	mealID := uuid.New()

	_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.MealUpdate{
		RecordID: mealID, Name: "Oatmeal", Calories: 400, Protein: 20,
	}, fx.date)
	require.NoError(t, err)

	doc, err := fx.facade.RemoveActivity(ctx, fx.userID, activity.TypeMeal, mealID, "", fx.date)
	require.NoError(t, err)

	assert.Empty(t, doc.TodayProgress.Meals)
	assert.Zero(t, doc.TodayProgress.Totals.Calories)
	assert.Zero(t, fx.daily.deleteCalls, "clean removal never rebuilds")
}

func TestRemoveActivityMissingRecordRebuildsFromSource(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	// Cache knows one meal; the store has a different one. Removing an id the
	// cache never saw must trigger a rebuild, not a silent no-op.
	_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.MealUpdate{
		RecordID: uuid.New(), Name: "Stale", Calories: 999,
	}, fx.date)
	require.NoError(t, err)

	fx.source.setDay(fx.userID, fx.date, activity.DayRows{
		Meals: []activity.MealRecord{{ID: uuid.New(), Name: "Truth", Calories: 500}},
	})

	doc, err := fx.facade.RemoveActivity(ctx, fx.userID, activity.TypeMeal, uuid.New(), "", fx.date)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.daily.deleteCalls)
	require.Len(t, doc.TodayProgress.Meals, 1)
	assert.Equal(t, "Truth", doc.TodayProgress.Meals[0].Name)
	assert.Equal(t, float64(500), doc.TodayProgress.Totals.Calories)

	// The rebuilt row restarts its version history.
	_, version, err := fx.facade.GetOrCreateContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestRemoveActivitySnapshotTypesClearValue(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	kg := 80.0
	_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.WeightUpdate{Kilograms: &kg}, fx.date)
	require.NoError(t, err)

	doc, err := fx.facade.RemoveActivity(ctx, fx.userID, activity.TypeWeight, uuid.Nil, "", fx.date)
	require.NoError(t, err)
	assert.Nil(t, doc.TodayProgress.WeightKg)

	_, _, err = fx.facade.UpdateActivity(ctx, fx.userID, activity.WaterUpdate{Glasses: 5}, fx.date)
	require.NoError(t, err)

	doc, err = fx.facade.RemoveActivity(ctx, fx.userID, activity.TypeWater, uuid.Nil, "", fx.date)
	require.NoError(t, err)
	assert.Zero(t, doc.TodayProgress.WaterGlasses)
}

func TestRemoveActivitySupplementByName(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()

	_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.SupplementUpdate{Name: "creatine", Taken: true}, fx.date)
	require.NoError(t, err)

	doc, err := fx.facade.RemoveActivity(ctx, fx.userID, activity.TypeSupplement, uuid.Nil, "creatine", fx.date)
	require.NoError(t, err)
	assert.Empty(t, doc.TodayProgress.SupplementsTaken)
}

func TestRebuildContextMatchesIncrementalState(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()
	mealID := uuid.New()

	_, _, err := fx.facade.UpdateActivity(ctx, fx.userID, activity.MealUpdate{
		RecordID: mealID, Name: "Oatmeal", MealType: "breakfast", Calories: 400, Protein: 20,
	}, fx.date)
	require.NoError(t, err)
	incremental, _, err := fx.facade.GetOrCreateContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)

	fx.source.setDay(fx.userID, fx.date, activity.DayRows{
		Meals: []activity.MealRecord{
			{ID: mealID, Name: "Oatmeal", MealType: "breakfast", Calories: 400, Protein: 20},
		},
	})

	rebuilt, err := fx.facade.RebuildContext(ctx, fx.userID, fx.date)
	require.NoError(t, err)

	assert.Equal(t, incremental.TodayProgress.Totals, rebuilt.TodayProgress.Totals)
	assert.Equal(t, incremental.TodayProgress.MealsLogged, rebuilt.TodayProgress.MealsLogged)
	assert.Equal(t, incremental.TodayProgress.Meals[0].RecordID, rebuilt.TodayProgress.Meals[0].RecordID)
}

func TestRebuildContextSourceUnavailable(t *testing.T) {
	fx := newFacadeFixture()
	fx.source.err = errors.New("connection refused")

	_, err := fx.facade.RebuildContext(context.Background(), fx.userID, fx.date)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activity store unavailable")
}

func TestGetOrGenerateWeeklyContext(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()
	weekStart := weeklycontext.WeekStartOf(fx.date)

	fx.source.setDay(fx.userID, weekStart, activity.DayRows{
		Water: &activity.WaterRecord{Glasses: 8},
	})

	doc, err := fx.facade.GetOrGenerateWeeklyContext(ctx, fx.userID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, weekStart.Format(dailycontext.DateFormat), doc.WeekStart)
	assert.Equal(t, 1, doc.DaysWithData)
	assert.Equal(t, 8, doc.Hydration.TotalGlasses)

	// Second call serves the stored document.
	again, err := fx.facade.GetOrGenerateWeeklyContext(ctx, fx.userID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, doc.GeneratedAt, again.GeneratedAt)
}

func TestGenerateWeeklyContextReplacesWholesale(t *testing.T) {
	fx := newFacadeFixture()
	ctx := context.Background()
	weekStart := weeklycontext.WeekStartOf(fx.date)

	fx.source.setDay(fx.userID, weekStart, activity.DayRows{
		Steps: &activity.StepRecord{Count: 4000},
	})
	first, err := fx.facade.GenerateWeeklyContext(ctx, fx.userID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, 4000, first.Activity.TotalSteps)

	// New data lands; regeneration reflects it completely.
	fx.source.setDay(fx.userID, weekStart.AddDate(0, 0, 1), activity.DayRows{
		Steps: &activity.StepRecord{Count: 12000},
	})
	second, err := fx.facade.GenerateWeeklyContext(ctx, fx.userID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, 16000, second.Activity.TotalSteps)
	assert.Equal(t, 2, second.DaysWithData)
}
