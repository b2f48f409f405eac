package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"vitaLogAPI/internal/activity"
	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/internal/profile"
	"vitaLogAPI/internal/weeklycontext"
)

// AggregationEngine computes context documents purely from raw activity rows,
// with no dependency on any previously cached document. Given the same rows
// it produces identical totals every time, which is what makes rebuilds safe
// to run at any moment.
type AggregationEngine struct{}

func NewAggregationEngine() *AggregationEngine {
	return &AggregationEngine{}
}

// BuildDaily folds a full day of source rows into a fresh daily context.
// It reuses the same merge rules the incremental path applies, so a rebuilt
// document is indistinguishable from one grown update by update.
func (e *AggregationEngine) BuildDaily(userID uuid.UUID, date time.Time, snap profile.Snapshot, rows activity.DayRows) *dailycontext.Document {
	doc := dailycontext.New(userID, date, snap)
	p := &doc.TodayProgress

	for _, m := range rows.Meals {
		p.Apply(activity.MealUpdate{
			RecordID: m.ID,
			Name:     m.Name,
			MealType: m.MealType,
			Calories: m.Calories,
			Protein:  m.Protein,
			Carbs:    m.Carbs,
			Fat:      m.Fat,
			Fiber:    m.Fiber,
			LoggedAt: m.LoggedAt,
		})
	}
	for _, ex := range rows.Exercises {
		p.Apply(activity.ExerciseUpdate{
			RecordID:        ex.ID,
			Name:            ex.Name,
			ExerciseType:    ex.ExerciseType,
			DurationMinutes: ex.DurationMinutes,
			Sets:            ex.Sets,
			Reps:            ex.Reps,
			CaloriesBurned:  ex.CaloriesBurned,
		})
	}
	if rows.Water != nil {
		p.Apply(activity.WaterUpdate{Glasses: rows.Water.Glasses})
	}
	if rows.Steps != nil {
		p.Apply(activity.StepsUpdate{Count: rows.Steps.Count})
	}
	if rows.Sleep != nil {
		hours := rows.Sleep.Hours
		p.Apply(activity.SleepUpdate{Hours: &hours})
	}
	if rows.Weight != nil {
		kg := rows.Weight.Kilograms
		p.Apply(activity.WeightUpdate{Kilograms: &kg})
	}
	for _, sp := range rows.Supplements {
		p.Apply(activity.SupplementUpdate{Name: sp.Name, Taken: sp.Taken})
	}

	return doc
}

// BuildWeekly aggregates seven days of source rows into a weekly context.
// Averages divide by the number of days with any data (clamped to one),
// consistency percentages divide by seven because they measure calendar
// coverage, and goal rates use the fixed summary thresholds.
func (e *AggregationEngine) BuildWeekly(p *profile.UserProfile, weekStart time.Time, days []activity.DayRows) *weeklycontext.Document {
	weekEnd := weekStart.AddDate(0, 0, 6)
	year, week := weekStart.ISOWeek()

	doc := &weeklycontext.Document{
		UserID:     p.ID,
		WeekStart:  weekStart.Format(dailycontext.DateFormat),
		WeekEnd:    weekEnd.Format(dailycontext.DateFormat),
		WeekNumber: week,
		Year:       year,
		Nutrition: weeklycontext.NutritionSummary{
			DailyBreakdown: map[string]weeklycontext.DayNutrition{},
		},
		Exercise: weeklycontext.ExerciseSummary{
			WorkoutTypes:   []string{},
			DailyBreakdown: map[string]int{},
		},
		Hydration:   weeklycontext.HydrationSummary{DailyBreakdown: map[string]int{}},
		Activity:    weeklycontext.ActivitySummary{DailyBreakdown: map[string]int{}},
		Sleep:       weeklycontext.SleepSummary{DailyBreakdown: map[string]float64{}},
		Supplements: weeklycontext.SupplementSummary{DistinctNames: []string{}},
		GeneratedAt: time.Now().UTC(),
	}

	workoutTypes := map[string]bool{}
	supplementNames := map[string]bool{}

	var daysWithData, calorieGoalDays, waterGoalDays, stepGoalDays, workoutDays int
	var waterDays, stepDays, sleepDays, supplementDays int
	var firstWeight, lastWeight *float64

	for _, day := range days {
		key := day.Date.Format(dailycontext.DateFormat)

		if day.HasData() {
			daysWithData++
		}

		if len(day.Meals) > 0 {
			var dn weeklycontext.DayNutrition
			for _, m := range day.Meals {
				dn.Calories += m.Calories
				dn.Protein += m.Protein
				dn.Carbs += m.Carbs
				dn.Fat += m.Fat
				dn.Fiber += m.Fiber
			}
			dn.Meals = len(day.Meals)
			doc.Nutrition.DailyBreakdown[key] = dn
			doc.Nutrition.TotalCalories += dn.Calories
			doc.Nutrition.TotalProtein += dn.Protein
			doc.Nutrition.TotalCarbs += dn.Carbs
			doc.Nutrition.TotalFat += dn.Fat
			doc.Nutrition.TotalFiber += dn.Fiber
			doc.Nutrition.DaysLogged++

			if p.TDEE > 0 && math.Abs(dn.Calories-p.TDEE) <= p.TDEE*weeklycontext.CalorieGoalBand {
				calorieGoalDays++
			}
		}

		if len(day.Exercises) > 0 {
			workoutDays++
			minutes := 0
			for _, ex := range day.Exercises {
				d := ex.DurationMinutes
				if d <= 0 {
					d = dailycontext.EstimateExerciseDuration(ex.Sets, ex.Reps)
				}
				minutes += d
				doc.Exercise.TotalWorkouts++
				if ex.ExerciseType != "" {
					workoutTypes[ex.ExerciseType] = true
				}
			}
			doc.Exercise.TotalMinutes += minutes
			doc.Exercise.DailyBreakdown[key] = minutes
		}

		if day.Water != nil {
			waterDays++
			doc.Hydration.TotalGlasses += day.Water.Glasses
			doc.Hydration.DailyBreakdown[key] = day.Water.Glasses
			if day.Water.Glasses >= weeklycontext.WaterGoalGlasses {
				waterGoalDays++
			}
		}

		if day.Steps != nil {
			stepDays++
			doc.Activity.TotalSteps += day.Steps.Count
			doc.Activity.DailyBreakdown[key] = day.Steps.Count
			if day.Steps.Count >= weeklycontext.StepGoalCount {
				stepGoalDays++
			}
		}

		if day.Sleep != nil {
			sleepDays++
			doc.Sleep.TotalHours += day.Sleep.Hours
			doc.Sleep.DailyBreakdown[key] = day.Sleep.Hours
		}

		if day.Weight != nil {
			kg := day.Weight.Kilograms
			if firstWeight == nil {
				firstWeight = &kg
			}
			lastWeight = &kg
		}

		if len(day.Supplements) > 0 {
			supplementDays++
			for _, sp := range day.Supplements {
				if sp.Taken {
					supplementNames[sp.Name] = true
				}
			}
		}
	}

	doc.DaysWithData = daysWithData
	divisor := float64(daysWithData)
	if divisor < 1 {
		divisor = 1
	}

	doc.Nutrition.AvgDailyCalories = doc.Nutrition.TotalCalories / divisor
	doc.Nutrition.AvgDailyProtein = doc.Nutrition.TotalProtein / divisor
	doc.Nutrition.AvgDailyCarbs = doc.Nutrition.TotalCarbs / divisor
	doc.Nutrition.AvgDailyFat = doc.Nutrition.TotalFat / divisor
	doc.Nutrition.AvgDailyFiber = doc.Nutrition.TotalFiber / divisor
	doc.Nutrition.CalorieGoalRate = rateOf(calorieGoalDays, 7)

	doc.Exercise.AvgDailyMinutes = float64(doc.Exercise.TotalMinutes) / divisor
	doc.Exercise.DaysActive = workoutDays
	doc.Exercise.WorkoutGoalRate = math.Min(rateOf(workoutDays, weeklycontext.WorkoutGoalPerWeek), 100)
	doc.Exercise.WorkoutTypes = sortedKeys(workoutTypes)

	doc.Hydration.AvgDailyGlasses = float64(doc.Hydration.TotalGlasses) / divisor
	doc.Hydration.ConsistencyPct = rateOf(waterDays, 7)
	doc.Hydration.WaterGoalRate = rateOf(waterGoalDays, 7)

	doc.Activity.AvgDailySteps = float64(doc.Activity.TotalSteps) / divisor
	doc.Activity.ConsistencyPct = rateOf(stepDays, 7)
	doc.Activity.StepGoalRate = rateOf(stepGoalDays, 7)

	if sleepDays > 0 {
		doc.Sleep.AvgNightHours = doc.Sleep.TotalHours / float64(sleepDays)
	}
	doc.Sleep.ConsistencyPct = rateOf(sleepDays, 7)

	doc.Weight.StartWeightKg = firstWeight
	doc.Weight.EndWeightKg = lastWeight
	if firstWeight != nil && lastWeight != nil {
		doc.Weight.WeightChangeKg = *lastWeight - *firstWeight
	}

	doc.Supplements.DistinctNames = sortedKeys(supplementNames)
	doc.Supplements.DaysLogged = supplementDays
	doc.Supplements.ConsistencyPct = rateOf(supplementDays, 7)

	doc.Insights = e.buildInsights(p, doc)

	return doc
}

// buildInsights derives the advisory text blocks from the aggregates and the
// user's stated weight goal. Purely rule-based; no model calls here.
func (e *AggregationEngine) buildInsights(p *profile.UserProfile, doc *weeklycontext.Document) weeklycontext.Insights {
	ins := weeklycontext.Insights{
		Achievements:    []string{},
		Improvements:    []string{},
		Trends:          []string{},
		Recommendations: []string{},
	}

	if doc.Hydration.WaterGoalRate >= 80 {
		ins.Achievements = append(ins.Achievements, "Hit your hydration target almost every day this week")
	} else if doc.Hydration.ConsistencyPct < 50 {
		ins.Improvements = append(ins.Improvements, "Water logging was sparse; try logging each glass as you drink it")
	}

	if doc.Exercise.DaysActive >= weeklycontext.WorkoutGoalPerWeek {
		ins.Achievements = append(ins.Achievements,
			fmt.Sprintf("Worked out on %d days, meeting the weekly target", doc.Exercise.DaysActive))
	} else if doc.Exercise.DaysActive > 0 {
		ins.Improvements = append(ins.Improvements,
			fmt.Sprintf("Only %d workout day(s) this week; aim for %d", doc.Exercise.DaysActive, weeklycontext.WorkoutGoalPerWeek))
	}

	if doc.Activity.StepGoalRate >= 70 {
		ins.Achievements = append(ins.Achievements, "Great step counts on most days")
	}

	change := doc.Weight.WeightChangeKg
	switch {
	case doc.Weight.StartWeightKg == nil || doc.Weight.EndWeightKg == nil:
		// no weight trend without two weigh-ins
	case change < -0.1:
		ins.Trends = append(ins.Trends, fmt.Sprintf("Weight moved down %.1f kg over the week", -change))
		if p.WeightGoal == profile.WeightGoalLose {
			ins.Achievements = append(ins.Achievements, "Weight is trending toward your goal")
		}
	case change > 0.1:
		ins.Trends = append(ins.Trends, fmt.Sprintf("Weight moved up %.1f kg over the week", change))
		if p.WeightGoal == profile.WeightGoalGain {
			ins.Achievements = append(ins.Achievements, "Weight is trending toward your goal")
		}
	default:
		ins.Trends = append(ins.Trends, "Weight held steady this week")
		if p.WeightGoal == profile.WeightGoalMaintain {
			ins.Achievements = append(ins.Achievements, "Maintaining weight right on target")
		}
	}

	if p.TDEE > 0 && doc.Nutrition.DaysLogged > 0 {
		avg := doc.Nutrition.AvgDailyCalories
		switch {
		case p.WeightGoal == profile.WeightGoalLose && avg > p.TDEE:
			ins.Recommendations = append(ins.Recommendations,
				fmt.Sprintf("Average intake (%.0f kcal) is above your TDEE; tighten portions to keep losing", avg))
		case p.WeightGoal == profile.WeightGoalGain && avg < p.TDEE:
			ins.Recommendations = append(ins.Recommendations,
				fmt.Sprintf("Average intake (%.0f kcal) is below your TDEE; add a calorie-dense snack", avg))
		case doc.Nutrition.CalorieGoalRate >= 70:
			ins.Achievements = append(ins.Achievements, "Calories stayed close to target on most logged days")
		}
	}

	if doc.Sleep.ConsistencyPct >= 70 && doc.Sleep.AvgNightHours >= 7 {
		ins.Achievements = append(ins.Achievements, "Solid, consistent sleep this week")
	} else if doc.Sleep.ConsistencyPct > 0 && doc.Sleep.AvgNightHours < 6.5 {
		ins.Recommendations = append(ins.Recommendations, "Average sleep is under 6.5 hours; an earlier wind-down could help recovery")
	}

	if len(ins.Recommendations) == 0 && doc.DaysWithData < 4 {
		ins.Recommendations = append(ins.Recommendations, "Log a few more days next week for sharper insights")
	}

	return ins
}

func rateOf(count, of int) float64 {
	if of <= 0 {
		return 0
	}
	return float64(count) / float64(of) * 100
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
