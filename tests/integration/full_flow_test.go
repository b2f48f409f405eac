package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitaLogAPI/handlers"
	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/internal/weeklycontext"
	"vitaLogAPI/middleware"
	"vitaLogAPI/services"
	"vitaLogAPI/tests/helpers"
)

type contextResponse struct {
	Context  dailycontext.Document `json:"context"`
	Version  int                   `json:"version"`
	RecordID uuid.UUID             `json:"record_id"`
}

type weeklyResponse struct {
	WeeklyContext weeklycontext.Document `json:"weekly_context"`
	Summary       weeklycontext.Summary  `json:"summary"`
}

// TestFullActivityLoggingFlow walks a day in the life of one user: seed the
// context, log activities, delete one, rebuild, then read the weekly rollup.
func TestFullActivityLoggingFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	helpers.SeedTestUser(t, pool, clerkID)

	profileService := services.NewProfileService(pool)
	activityService := services.NewActivityService(pool)
	dailyService := services.NewDailyContextService(pool)
	weeklyService := services.NewWeeklyContextService(pool)
	engine := services.NewAggregationEngine()
	facade := services.NewContextFacade(dailyService, weeklyService, activityService, profileService, engine)

	contextHandler := handlers.NewContextHandler(facade, activityService, profileService)
	weeklyHandler := handlers.NewWeeklyHandler(facade, weeklyService, profileService)

	authed := func(r *http.Request) *http.Request {
		return r.WithContext(context.WithValue(r.Context(), middleware.ClerkIDKey, clerkID))
	}

	const date = "2025-03-12" // Wednesday
	const weekStart = "2025-03-10"

	// Step 1: first read seeds an empty context at version 1
	t.Log("Step 1: First context read seeds the day")

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/context/daily?date="+date, nil))
	rr := httptest.NewRecorder()
	contextHandler.GetDailyContext(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var seeded contextResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &seeded))
	assert.Equal(t, 1, seeded.Version)
	assert.Equal(t, date, seeded.Context.Date)
	assert.Empty(t, seeded.Context.TodayProgress.Meals)

	// Step 2: log a meal
	t.Log("Step 2: Log breakfast")

	body := `{"activity_type": "meal", "date": "` + date + `", "name": "Oatmeal", "meal_type": "breakfast", "calories": 400, "protein": 20}`
	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/context/activity", strings.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	contextHandler.LogActivity(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var afterMeal contextResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &afterMeal))
	assert.Equal(t, 2, afterMeal.Version, "each write bumps the version by one")
	assert.NotEqual(t, uuid.Nil, afterMeal.RecordID)
	assert.Equal(t, float64(400), afterMeal.Context.TodayProgress.Totals.Calories)
	mealID := afterMeal.RecordID

	// Step 3: log water, twice; the second write overwrites the snapshot
	t.Log("Step 3: Log water")

	for _, glasses := range []string{"3", "6"} {
		body = `{"activity_type": "water", "date": "` + date + `", "glasses": ` + glasses + `}`
		req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/context/activity", strings.NewReader(body)))
		req.Header.Set("Content-Type", "application/json")
		rr = httptest.NewRecorder()
		contextHandler.LogActivity(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	var afterWater contextResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &afterWater))
	assert.Equal(t, 4, afterWater.Version)
	assert.Equal(t, 6, afterWater.Context.TodayProgress.WaterGlasses)
	assert.Equal(t, float64(400), afterWater.Context.TodayProgress.Totals.Calories, "meal survives water updates")

	// Step 4: delete the meal; its contribution disappears from the totals
	t.Log("Step 4: Delete the meal")

	url := "/api/v1/context/activity?type=meal&record_id=" + mealID.String() + "&date=" + date
	req = authed(httptest.NewRequest(http.MethodDelete, url, nil))
	rr = httptest.NewRecorder()
	contextHandler.RemoveActivity(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var afterDelete contextResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &afterDelete))
	assert.Empty(t, afterDelete.Context.TodayProgress.Meals)
	assert.Zero(t, afterDelete.Context.TodayProgress.Totals.Calories)
	assert.Equal(t, 6, afterDelete.Context.TodayProgress.WaterGlasses)

	// Deleting the same record again is a 404, not a silent success.
	req = authed(httptest.NewRequest(http.MethodDelete, url, nil))
	rr = httptest.NewRecorder()
	contextHandler.RemoveActivity(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Step 5: rebuild from source matches the incremental state
	t.Log("Step 5: Rebuild from the activity store")

	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/context/daily/rebuild?date="+date, nil))
	rr = httptest.NewRecorder()
	contextHandler.RebuildDailyContext(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var rebuilt contextResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rebuilt))
	assert.Equal(t, 1, rebuilt.Version, "rebuild resets the version history")
	assert.Equal(t, 6, rebuilt.Context.TodayProgress.WaterGlasses)
	assert.Zero(t, rebuilt.Context.TodayProgress.Totals.Calories)

	// Step 6: the weekly rollup sees the day's data
	t.Log("Step 6: Read the weekly context")

	req = authed(httptest.NewRequest(http.MethodGet, "/api/v1/context/weekly?week_start="+weekStart, nil))
	rr = httptest.NewRecorder()
	weeklyHandler.GetWeeklyContext(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var weekly weeklyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &weekly))
	assert.Equal(t, weekStart, weekly.WeeklyContext.WeekStart)
	assert.Equal(t, 1, weekly.WeeklyContext.DaysWithData)
	assert.Equal(t, 6, weekly.WeeklyContext.Hydration.TotalGlasses)
	assert.Equal(t, weekStart, weekly.Summary.WeekStart)

	// Step 7: summaries list includes the materialized week
	t.Log("Step 7: List weekly summaries")

	req = authed(httptest.NewRequest(http.MethodGet, "/api/v1/context/weekly/summaries", nil))
	rr = httptest.NewRecorder()
	weeklyHandler.ListWeeklySummaries(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var listing struct {
		Summaries []weeklycontext.Summary `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	require.NotEmpty(t, listing.Summaries)
	assert.Equal(t, weekStart, listing.Summaries[0].WeekStart)
}

// TestUnknownUserIsRejected exercises the auth resolution path without a
// matching profile row.
func TestUnknownUserIsRejected(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	profileService := services.NewProfileService(pool)
	activityService := services.NewActivityService(pool)
	dailyService := services.NewDailyContextService(pool)
	weeklyService := services.NewWeeklyContextService(pool)
	facade := services.NewContextFacade(dailyService, weeklyService, activityService, profileService, services.NewAggregationEngine())
	contextHandler := handlers.NewContextHandler(facade, activityService, profileService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/context/daily", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, "user_does_not_exist"))
	rr := httptest.NewRecorder()
	contextHandler.GetDailyContext(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
