package weeklycontext

import (
	"time"

	"github.com/google/uuid"
)

// Thresholds behind the goal-achievement rates. These are the summary
// contract's fixed targets; the profile's own goals only shape the insight
// text.
const (
	WaterGoalGlasses   = 8
	StepGoalCount      = 10000
	WorkoutGoalPerWeek = 4
	CalorieGoalBand    = 0.10 // within ±10% of TDEE counts as on target
)

type DayNutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Meals    int     `json:"meals"`
}

type NutritionSummary struct {
	TotalCalories    float64                 `json:"total_calories"`
	TotalProtein     float64                 `json:"total_protein"`
	TotalCarbs       float64                 `json:"total_carbs"`
	TotalFat         float64                 `json:"total_fat"`
	TotalFiber       float64                 `json:"total_fiber"`
	AvgDailyCalories float64                 `json:"avg_daily_calories"`
	AvgDailyProtein  float64                 `json:"avg_daily_protein"`
	AvgDailyCarbs    float64                 `json:"avg_daily_carbs"`
	AvgDailyFat      float64                 `json:"avg_daily_fat"`
	AvgDailyFiber    float64                 `json:"avg_daily_fiber"`
	DailyBreakdown   map[string]DayNutrition `json:"daily_breakdown"`
	DaysLogged       int                     `json:"days_logged"`
	CalorieGoalRate  float64                 `json:"calorie_goal_rate"`
}

type ExerciseSummary struct {
	TotalWorkouts   int            `json:"total_workouts"`
	TotalMinutes    int            `json:"total_minutes"`
	AvgDailyMinutes float64        `json:"avg_daily_minutes"`
	WorkoutTypes    []string       `json:"workout_types"`
	DailyBreakdown  map[string]int `json:"daily_breakdown"` // date -> minutes
	DaysActive      int            `json:"days_active"`
	WorkoutGoalRate float64        `json:"workout_goal_rate"`
}

type HydrationSummary struct {
	TotalGlasses    int            `json:"total_glasses"`
	AvgDailyGlasses float64        `json:"avg_daily_glasses"`
	DailyBreakdown  map[string]int `json:"daily_breakdown"`
	ConsistencyPct  float64        `json:"consistency_pct"`
	WaterGoalRate   float64        `json:"water_goal_rate"`
}

type ActivitySummary struct {
	TotalSteps     int            `json:"total_steps"`
	AvgDailySteps  float64        `json:"avg_daily_steps"`
	DailyBreakdown map[string]int `json:"daily_breakdown"`
	ConsistencyPct float64        `json:"consistency_pct"`
	StepGoalRate   float64        `json:"step_goal_rate"`
}

type SleepSummary struct {
	TotalHours     float64            `json:"total_hours"`
	AvgNightHours  float64            `json:"avg_night_hours"`
	DailyBreakdown map[string]float64 `json:"daily_breakdown"`
	ConsistencyPct float64            `json:"consistency_pct"`
}

type WeightSummary struct {
	StartWeightKg  *float64 `json:"start_weight_kg"`
	EndWeightKg    *float64 `json:"end_weight_kg"`
	WeightChangeKg float64  `json:"weight_change_kg"`
}

type SupplementSummary struct {
	DistinctNames  []string `json:"distinct_names"`
	DaysLogged     int      `json:"days_logged"`
	ConsistencyPct float64  `json:"consistency_pct"`
}

// Insights are advisory strings derived from the aggregates and the user's
// stated weight goal. Nothing downstream depends on them for correctness.
type Insights struct {
	Achievements    []string `json:"achievements"`
	Improvements    []string `json:"improvements"`
	Trends          []string `json:"trends"`
	Recommendations []string `json:"recommendations"`
}

// Document is one wholesale-replaced row per (user, ISO week). Unlike the
// daily context it is never patched incrementally: a rebuild recomputes the
// full seven-day window from the activity store.
type Document struct {
	UserID       uuid.UUID         `json:"user_id"`
	WeekStart    string            `json:"week_start"` // Monday, YYYY-MM-DD
	WeekEnd      string            `json:"week_end"`   // Sunday
	WeekNumber   int               `json:"week_number"`
	Year         int               `json:"year"`
	DaysWithData int               `json:"days_with_data"`
	Nutrition    NutritionSummary  `json:"nutrition"`
	Exercise     ExerciseSummary   `json:"exercise"`
	Hydration    HydrationSummary  `json:"hydration"`
	Activity     ActivitySummary   `json:"activity"`
	Sleep        SleepSummary      `json:"sleep"`
	Weight       WeightSummary     `json:"weight"`
	Supplements  SupplementSummary `json:"supplements"`
	Insights     Insights          `json:"insights"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// Summary is the denormalized subset served by the trend-listing endpoint so
// clients can render a history without loading full documents.
type Summary struct {
	WeekStart        string  `json:"week_start"`
	WeekNumber       int     `json:"week_number"`
	Year             int     `json:"year"`
	DaysWithData     int     `json:"days_with_data"`
	AvgDailyCalories float64 `json:"avg_daily_calories"`
	TotalWorkouts    int     `json:"total_workouts"`
	AvgDailyGlasses  float64 `json:"avg_daily_glasses"`
	AvgDailySteps    float64 `json:"avg_daily_steps"`
	WeightChangeKg   float64 `json:"weight_change_kg"`
}

func (d *Document) Summary() Summary {
	return Summary{
		WeekStart:        d.WeekStart,
		WeekNumber:       d.WeekNumber,
		Year:             d.Year,
		DaysWithData:     d.DaysWithData,
		AvgDailyCalories: d.Nutrition.AvgDailyCalories,
		TotalWorkouts:    d.Exercise.TotalWorkouts,
		AvgDailyGlasses:  d.Hydration.AvgDailyGlasses,
		AvgDailySteps:    d.Activity.AvgDailySteps,
		WeightChangeKg:   d.Weight.WeightChangeKg,
	}
}

// WeekStartOf returns the Monday of the ISO week containing t, at midnight in
// t's location.
func WeekStartOf(t time.Time) time.Time {
	daysBack := int(t.Weekday()) - 1
	if daysBack < 0 {
		daysBack = 6 // Sunday
	}
	monday := t.AddDate(0, 0, -daysBack)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}
