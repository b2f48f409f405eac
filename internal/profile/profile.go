package profile

import (
	"time"

	"github.com/google/uuid"
)

type WeightGoal string

const (
	WeightGoalLose     WeightGoal = "lose"
	WeightGoalGain     WeightGoal = "gain"
	WeightGoalMaintain WeightGoal = "maintain"
)

type UserProfile struct {
	ID                 uuid.UUID  `json:"id"`
	ClerkID            string     `json:"clerkId"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Age                int        `json:"age"`
	WeightKg           float64    `json:"weightKg"`
	HeightCm           float64    `json:"heightCm"`
	PrimaryGoal        string     `json:"primaryGoal"`
	WeightGoal         WeightGoal `json:"weightGoal"`
	TargetWeightKg     float64    `json:"targetWeightKg"`
	ActivityLevel      string     `json:"activityLevel"`
	TDEE               float64    `json:"tdee"`
	DietaryPreferences []string   `json:"dietaryPreferences"`
	MedicalConditions  []string   `json:"medicalConditions"`
	WaterGlassGoal     int        `json:"waterGlassGoal"`
	DailyStepGoal      int        `json:"dailyStepGoal"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Snapshot is the denormalized profile copy embedded in a daily context at
// creation time. It is never re-synced automatically; a context rebuild takes
// a fresh copy.
type Snapshot struct {
	Name               string     `json:"name"`
	PrimaryGoal        string     `json:"primary_goal"`
	WeightGoal         WeightGoal `json:"weight_goal"`
	TargetWeightKg     float64    `json:"target_weight_kg"`
	ActivityLevel      string     `json:"activity_level"`
	TDEE               float64    `json:"tdee"`
	DietaryPreferences []string   `json:"dietary_preferences"`
	MedicalConditions  []string   `json:"medical_conditions"`
	WaterGlassGoal     int        `json:"water_glass_goal"`
	DailyStepGoal      int        `json:"daily_step_goal"`
}

func (p *UserProfile) Snapshot() Snapshot {
	return Snapshot{
		Name:               p.Name,
		PrimaryGoal:        p.PrimaryGoal,
		WeightGoal:         p.WeightGoal,
		TargetWeightKg:     p.TargetWeightKg,
		ActivityLevel:      p.ActivityLevel,
		TDEE:               p.TDEE,
		DietaryPreferences: p.DietaryPreferences,
		MedicalConditions:  p.MedicalConditions,
		WaterGlassGoal:     p.WaterGlassGoal,
		DailyStepGoal:      p.DailyStepGoal,
	}
}
