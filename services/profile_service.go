package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitaLogAPI/internal/profile"
)

// ProfileService is the user-profile store collaborator. The aggregation core
// only reads from it; profile CRUD lives elsewhere.
type ProfileService struct {
	db *pgxpool.Pool
}

func NewProfileService(db *pgxpool.Pool) *ProfileService {
	return &ProfileService{db: db}
}

const profileColumns = `
	id, clerk_id, email, name, age, weight_kg, height_cm,
	primary_goal, weight_goal, target_weight_kg, activity_level, tdee,
	dietary_preferences, medical_conditions, water_glass_goal, daily_step_goal,
	created_at, updated_at
`

func scanProfile(row pgx.Row) (*profile.UserProfile, error) {
	p := &profile.UserProfile{}
	err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.Email,
		&p.Name,
		&p.Age,
		&p.WeightKg,
		&p.HeightCm,
		&p.PrimaryGoal,
		&p.WeightGoal,
		&p.TargetWeightKg,
		&p.ActivityLevel,
		&p.TDEE,
		&p.DietaryPreferences,
		&p.MedicalConditions,
		&p.WaterGlassGoal,
		&p.DailyStepGoal,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return p, nil
}

func (s *ProfileService) GetUserByID(ctx context.Context, userID uuid.UUID) (*profile.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`
	return scanProfile(s.db.QueryRow(ctx, query, userID))
}

func (s *ProfileService) GetUserByClerkID(ctx context.Context, clerkID string) (*profile.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE clerk_id = $1`
	return scanProfile(s.db.QueryRow(ctx, query, clerkID))
}
