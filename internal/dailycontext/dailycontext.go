package dailycontext

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"vitaLogAPI/internal/activity"
	"vitaLogAPI/internal/profile"
)

// SchemaVersion is stored in every document so old cached rows can be detected
// and rebuilt after a shape change.
const SchemaVersion = 1

type MealEntry struct {
	RecordID uuid.UUID `json:"record_id"`
	Name     string    `json:"name"`
	MealType string    `json:"meal_type"`
	Calories float64   `json:"calories"`
	Protein  float64   `json:"protein"`
	Carbs    float64   `json:"carbs"`
	Fat      float64   `json:"fat"`
	Fiber    float64   `json:"fiber"`
	LoggedAt time.Time `json:"logged_at"`
}

type ExerciseEntry struct {
	RecordID        uuid.UUID `json:"record_id"`
	Name            string    `json:"name"`
	ExerciseType    string    `json:"exercise_type"`
	DurationMinutes int       `json:"duration_minutes"`
	CaloriesBurned  float64   `json:"calories_burned"`
}

type NutritionTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
}

// TodayProgress is the mutable heart of the daily context. Invariant: Totals
// always equals the sum over Meals, and MealsLogged/ExercisesDone/
// ExerciseMinutes always match the lists. Apply and the Remove helpers restore
// the invariant before returning.
type TodayProgress struct {
	Meals            []MealEntry     `json:"meals"`
	Exercises        []ExerciseEntry `json:"exercises"`
	WaterGlasses     int             `json:"water_glasses"`
	Steps            int             `json:"steps"`
	WeightKg         *float64        `json:"weight_kg"`
	SleepHours       *float64        `json:"sleep_hours"`
	SupplementsTaken []string        `json:"supplements_taken"`
	Totals           NutritionTotals `json:"totals"`
	MealsLogged      int             `json:"meals_logged"`
	ExercisesDone    int             `json:"exercises_done"`
	ExerciseMinutes  int             `json:"exercise_minutes"`
}

type Metadata struct {
	CreatedAt        time.Time     `json:"created_at"`
	LastActivityType activity.Type `json:"last_activity_type,omitempty"`
	LastActivityAt   time.Time     `json:"last_activity_at"`
	SchemaVersion    int           `json:"schema_version"`
}

// Document is one cached row per (user, local calendar date).
type Document struct {
	UserID        uuid.UUID        `json:"user_id"`
	Date          string           `json:"date"` // YYYY-MM-DD, user-local
	UserProfile   profile.Snapshot `json:"user_profile"`
	TodayProgress TodayProgress    `json:"today_progress"`
	Metadata      Metadata         `json:"metadata"`
}

// DateFormat is the canonical wire/storage format for user-local dates.
const DateFormat = "2006-01-02"

// New seeds an empty but valid document for the given user and local date.
func New(userID uuid.UUID, date time.Time, snap profile.Snapshot) *Document {
	now := time.Now().UTC()
	return &Document{
		UserID:      userID,
		Date:        date.Format(DateFormat),
		UserProfile: snap,
		TodayProgress: TodayProgress{
			Meals:            []MealEntry{},
			Exercises:        []ExerciseEntry{},
			SupplementsTaken: []string{},
		},
		Metadata: Metadata{
			CreatedAt:      now,
			LastActivityAt: now,
			SchemaVersion:  SchemaVersion,
		},
	}
}

// EstimateExerciseDuration fills in a workout duration when the client logged
// only sets and reps: 3s per rep plus 60s rest between sets. Falls back to 15
// minutes when there is nothing to estimate from.
func EstimateExerciseDuration(sets, reps int) int {
	if sets <= 0 || reps <= 0 {
		return 15
	}
	seconds := sets*reps*3 + (sets-1)*60
	minutes := seconds / 60
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Apply folds one activity update into the progress block. Meals and exercises
// accumulate by append; water, steps, weight and sleep are idempotent snapshots
// of the day's value; supplements are a named set.
func (p *TodayProgress) Apply(upd activity.Update) {
	switch u := upd.(type) {
	case activity.MealUpdate:
		p.Meals = append(p.Meals, MealEntry{
			RecordID: u.RecordID,
			Name:     u.Name,
			MealType: u.MealType,
			Calories: u.Calories,
			Protein:  u.Protein,
			Carbs:    u.Carbs,
			Fat:      u.Fat,
			Fiber:    u.Fiber,
			LoggedAt: u.LoggedAt,
		})
		p.Totals.Calories += u.Calories
		p.Totals.Protein += u.Protein
		p.Totals.Carbs += u.Carbs
		p.Totals.Fat += u.Fat
		p.Totals.Fiber += u.Fiber
		p.MealsLogged = len(p.Meals)

	case activity.ExerciseUpdate:
		duration := u.DurationMinutes
		if duration <= 0 {
			duration = EstimateExerciseDuration(u.Sets, u.Reps)
		}
		p.Exercises = append(p.Exercises, ExerciseEntry{
			RecordID:        u.RecordID,
			Name:            u.Name,
			ExerciseType:    u.ExerciseType,
			DurationMinutes: duration,
			CaloriesBurned:  u.CaloriesBurned,
		})
		p.ExercisesDone = len(p.Exercises)
		p.ExerciseMinutes = 0
		for _, e := range p.Exercises {
			p.ExerciseMinutes += e.DurationMinutes
		}

	case activity.WaterUpdate:
		p.WaterGlasses = u.Glasses

	case activity.StepsUpdate:
		p.Steps = u.Count

	case activity.WeightUpdate:
		p.WeightKg = u.Kilograms

	case activity.SleepUpdate:
		p.SleepHours = u.Hours

	case activity.SupplementUpdate:
		if u.Taken {
			p.addSupplement(u.Name)
		} else {
			p.removeSupplement(u.Name)
		}
	}
}

// RemoveMeal deletes the entry with the given record id and subtracts exactly
// its contribution from the totals. Returns false when the entry is not in the
// cached list, which signals drift from the activity store.
func (p *TodayProgress) RemoveMeal(recordID uuid.UUID) bool {
	for i, m := range p.Meals {
		if m.RecordID != recordID {
			continue
		}
		p.Totals.Calories -= m.Calories
		p.Totals.Protein -= m.Protein
		p.Totals.Carbs -= m.Carbs
		p.Totals.Fat -= m.Fat
		p.Totals.Fiber -= m.Fiber
		p.Meals = append(p.Meals[:i], p.Meals[i+1:]...)
		p.MealsLogged = len(p.Meals)
		return true
	}
	return false
}

func (p *TodayProgress) RemoveExercise(recordID uuid.UUID) bool {
	for i, e := range p.Exercises {
		if e.RecordID != recordID {
			continue
		}
		p.ExerciseMinutes -= e.DurationMinutes
		p.Exercises = append(p.Exercises[:i], p.Exercises[i+1:]...)
		p.ExercisesDone = len(p.Exercises)
		return true
	}
	return false
}

func (p *TodayProgress) addSupplement(name string) {
	for _, s := range p.SupplementsTaken {
		if s == name {
			return
		}
	}
	p.SupplementsTaken = append(p.SupplementsTaken, name)
	sort.Strings(p.SupplementsTaken)
}

func (p *TodayProgress) removeSupplement(name string) bool {
	for i, s := range p.SupplementsTaken {
		if s == name {
			p.SupplementsTaken = append(p.SupplementsTaken[:i], p.SupplementsTaken[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveSupplement removes a supplement by name, reporting whether it was set.
func (p *TodayProgress) RemoveSupplement(name string) bool {
	return p.removeSupplement(name)
}

// Touch records which activity mutated the document last.
func (d *Document) Touch(t activity.Type) {
	d.Metadata.LastActivityType = t
	d.Metadata.LastActivityAt = time.Now().UTC()
}
