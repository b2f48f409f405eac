package activity

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMeal       Type = "meal"
	TypeExercise   Type = "exercise"
	TypeWater      Type = "water"
	TypeSteps      Type = "steps"
	TypeWeight     Type = "weight"
	TypeSleep      Type = "sleep"
	TypeSupplement Type = "supplement"
)

// ValidType reports whether t names one of the tracked activity types.
func ValidType(t Type) bool {
	switch t {
	case TypeMeal, TypeExercise, TypeWater, TypeSteps, TypeWeight, TypeSleep, TypeSupplement:
		return true
	}
	return false
}

type MealRecord struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	LogDate  time.Time `json:"log_date" db:"log_date"`
	Name     string    `json:"name" db:"name"`
	MealType string    `json:"meal_type" db:"meal_type"`
	Calories float64   `json:"calories" db:"calories"`
	Protein  float64   `json:"protein" db:"protein"`
	Carbs    float64   `json:"carbs" db:"carbs"`
	Fat      float64   `json:"fat" db:"fat"`
	Fiber    float64   `json:"fiber" db:"fiber"`
	LoggedAt time.Time `json:"logged_at" db:"logged_at"`
}

type ExerciseRecord struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	LogDate         time.Time `json:"log_date" db:"log_date"`
	Name            string    `json:"name" db:"name"`
	ExerciseType    string    `json:"exercise_type" db:"exercise_type"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	Sets            int       `json:"sets" db:"sets"`
	Reps            int       `json:"reps" db:"reps"`
	CaloriesBurned  float64   `json:"calories_burned" db:"calories_burned"`
	LoggedAt        time.Time `json:"logged_at" db:"logged_at"`
}

// WaterRecord and StepRecord are one-per-day snapshots of the cumulative count,
// not deltas. Re-logging the same day overwrites the row.
type WaterRecord struct {
	ID      uuid.UUID `json:"id" db:"id"`
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	LogDate time.Time `json:"log_date" db:"log_date"`
	Glasses int       `json:"glasses" db:"glasses"`
}

type StepRecord struct {
	ID      uuid.UUID `json:"id" db:"id"`
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	LogDate time.Time `json:"log_date" db:"log_date"`
	Count   int       `json:"count" db:"count"`
}

type SleepRecord struct {
	ID      uuid.UUID `json:"id" db:"id"`
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	LogDate time.Time `json:"log_date" db:"log_date"`
	Hours   float64   `json:"hours" db:"hours"`
	Quality int       `json:"quality" db:"quality"`
}

type WeightRecord struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	LogDate   time.Time `json:"log_date" db:"log_date"`
	Kilograms float64   `json:"kilograms" db:"kilograms"`
}

type SupplementRecord struct {
	ID      uuid.UUID `json:"id" db:"id"`
	UserID  uuid.UUID `json:"user_id" db:"user_id"`
	LogDate time.Time `json:"log_date" db:"log_date"`
	Name    string    `json:"name" db:"name"`
	Taken   bool      `json:"taken" db:"taken"`
}

// DayRows bundles every raw record belonging to one user-local calendar date.
// It is the sole input of the aggregation engine.
type DayRows struct {
	Date        time.Time
	Meals       []MealRecord
	Exercises   []ExerciseRecord
	Water       *WaterRecord
	Steps       *StepRecord
	Sleep       *SleepRecord
	Weight      *WeightRecord
	Supplements []SupplementRecord
}

// HasData reports whether any activity at all was logged on this date.
func (d DayRows) HasData() bool {
	return len(d.Meals) > 0 || len(d.Exercises) > 0 || d.Water != nil ||
		d.Steps != nil || d.Sleep != nil || d.Weight != nil || len(d.Supplements) > 0
}

// Update is the closed set of incremental context mutations, one variant per
// activity type. Each variant carries only the fields its merge rule needs, so
// the merge is an exhaustive type switch instead of branching on strings.
type Update interface {
	ActivityType() Type
	sealed()
}

type MealUpdate struct {
	RecordID uuid.UUID
	Name     string
	MealType string
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    float64
	LoggedAt time.Time
}

type ExerciseUpdate struct {
	RecordID        uuid.UUID
	Name            string
	ExerciseType    string
	DurationMinutes int
	Sets            int
	Reps            int
	CaloriesBurned  float64
}

type WaterUpdate struct {
	Glasses int
}

type StepsUpdate struct {
	Count int
}

// WeightUpdate and SleepUpdate carry pointers so a delete can clear the field.
type WeightUpdate struct {
	Kilograms *float64
}

type SleepUpdate struct {
	Hours *float64
}

type SupplementUpdate struct {
	Name  string
	Taken bool
}

func (MealUpdate) ActivityType() Type       { return TypeMeal }
func (ExerciseUpdate) ActivityType() Type   { return TypeExercise }
func (WaterUpdate) ActivityType() Type      { return TypeWater }
func (StepsUpdate) ActivityType() Type      { return TypeSteps }
func (WeightUpdate) ActivityType() Type     { return TypeWeight }
func (SleepUpdate) ActivityType() Type      { return TypeSleep }
func (SupplementUpdate) ActivityType() Type { return TypeSupplement }

func (MealUpdate) sealed()       {}
func (ExerciseUpdate) sealed()   {}
func (WaterUpdate) sealed()      {}
func (StepsUpdate) sealed()      {}
func (WeightUpdate) sealed()     {}
func (SleepUpdate) sealed()      {}
func (SupplementUpdate) sealed() {}
