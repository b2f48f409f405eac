package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitaLogAPI/internal/activity"
)

// ActivityService is the raw activity store collaborator: one table per
// activity type, every row carrying a plain user-local log_date. The
// aggregation core inserts, deletes and reads rows here but never mutates
// them in place.
type ActivityService struct {
	db *pgxpool.Pool
}

func NewActivityService(db *pgxpool.Pool) *ActivityService {
	return &ActivityService{db: db}
}

func (s *ActivityService) MealsForDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]activity.MealRecord, error) {
	query := `
	SELECT id, user_id, log_date, name, meal_type, calories, protein, carbs, fat, fiber, logged_at
	FROM meals
	WHERE user_id = $1 AND log_date = $2
	ORDER BY logged_at
	`

	rows, err := s.db.Query(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch meals: %w", err)
	}
	defer rows.Close()

	var meals []activity.MealRecord
	for rows.Next() {
		var m activity.MealRecord
		err := rows.Scan(&m.ID, &m.UserID, &m.LogDate, &m.Name, &m.MealType,
			&m.Calories, &m.Protein, &m.Carbs, &m.Fat, &m.Fiber, &m.LoggedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func (s *ActivityService) ExercisesForDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]activity.ExerciseRecord, error) {
	query := `
	SELECT id, user_id, log_date, name, exercise_type, duration_minutes, sets, reps, calories_burned, logged_at
	FROM exercises
	WHERE user_id = $1 AND log_date = $2
	ORDER BY logged_at
	`

	rows, err := s.db.Query(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exercises: %w", err)
	}
	defer rows.Close()

	var exercises []activity.ExerciseRecord
	for rows.Next() {
		var e activity.ExerciseRecord
		err := rows.Scan(&e.ID, &e.UserID, &e.LogDate, &e.Name, &e.ExerciseType,
			&e.DurationMinutes, &e.Sets, &e.Reps, &e.CaloriesBurned, &e.LoggedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

func (s *ActivityService) WaterForDate(ctx context.Context, userID uuid.UUID, date time.Time) (*activity.WaterRecord, error) {
	var w activity.WaterRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, log_date, glasses FROM water_logs WHERE user_id = $1 AND log_date = $2`,
		userID, date).Scan(&w.ID, &w.UserID, &w.LogDate, &w.Glasses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch water log: %w", err)
	}
	return &w, nil
}

func (s *ActivityService) StepsForDate(ctx context.Context, userID uuid.UUID, date time.Time) (*activity.StepRecord, error) {
	var st activity.StepRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, log_date, count FROM step_logs WHERE user_id = $1 AND log_date = $2`,
		userID, date).Scan(&st.ID, &st.UserID, &st.LogDate, &st.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch step log: %w", err)
	}
	return &st, nil
}

func (s *ActivityService) SleepForDate(ctx context.Context, userID uuid.UUID, date time.Time) (*activity.SleepRecord, error) {
	var sl activity.SleepRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, log_date, hours, quality FROM sleep_logs WHERE user_id = $1 AND log_date = $2`,
		userID, date).Scan(&sl.ID, &sl.UserID, &sl.LogDate, &sl.Hours, &sl.Quality)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch sleep log: %w", err)
	}
	return &sl, nil
}

func (s *ActivityService) WeightForDate(ctx context.Context, userID uuid.UUID, date time.Time) (*activity.WeightRecord, error) {
	var w activity.WeightRecord
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, log_date, kilograms FROM weight_logs WHERE user_id = $1 AND log_date = $2`,
		userID, date).Scan(&w.ID, &w.UserID, &w.LogDate, &w.Kilograms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch weight log: %w", err)
	}
	return &w, nil
}

func (s *ActivityService) SupplementsForDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]activity.SupplementRecord, error) {
	query := `
	SELECT id, user_id, log_date, name, taken
	FROM supplement_logs
	WHERE user_id = $1 AND log_date = $2
	ORDER BY name
	`

	rows, err := s.db.Query(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch supplement logs: %w", err)
	}
	defer rows.Close()

	var supplements []activity.SupplementRecord
	for rows.Next() {
		var sp activity.SupplementRecord
		if err := rows.Scan(&sp.ID, &sp.UserID, &sp.LogDate, &sp.Name, &sp.Taken); err != nil {
			return nil, fmt.Errorf("failed to scan supplement log: %w", err)
		}
		supplements = append(supplements, sp)
	}
	return supplements, rows.Err()
}

// DayRowsForDate gathers every raw record for one user-local calendar date.
// Every type resolves day membership the same way: exact log_date equality.
func (s *ActivityService) DayRowsForDate(ctx context.Context, userID uuid.UUID, date time.Time) (activity.DayRows, error) {
	day := activity.DayRows{Date: date}

	var err error
	if day.Meals, err = s.MealsForDate(ctx, userID, date); err != nil {
		return day, err
	}
	if day.Exercises, err = s.ExercisesForDate(ctx, userID, date); err != nil {
		return day, err
	}
	if day.Water, err = s.WaterForDate(ctx, userID, date); err != nil {
		return day, err
	}
	if day.Steps, err = s.StepsForDate(ctx, userID, date); err != nil {
		return day, err
	}
	if day.Sleep, err = s.SleepForDate(ctx, userID, date); err != nil {
		return day, err
	}
	if day.Weight, err = s.WeightForDate(ctx, userID, date); err != nil {
		return day, err
	}
	if day.Supplements, err = s.SupplementsForDate(ctx, userID, date); err != nil {
		return day, err
	}
	return day, nil
}

func (s *ActivityService) InsertMeal(ctx context.Context, m *activity.MealRecord) (*activity.MealRecord, error) {
	query := `
	INSERT INTO meals (id, user_id, log_date, name, meal_type, calories, protein, carbs, fat, fiber, logged_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	RETURNING id, user_id, log_date, name, meal_type, calories, protein, carbs, fat, fiber, logged_at
	`

	stored := &activity.MealRecord{}
	err := s.db.QueryRow(ctx, query,
		uuid.New(), m.UserID, m.LogDate, m.Name, m.MealType,
		m.Calories, m.Protein, m.Carbs, m.Fat, m.Fiber,
	).Scan(&stored.ID, &stored.UserID, &stored.LogDate, &stored.Name, &stored.MealType,
		&stored.Calories, &stored.Protein, &stored.Carbs, &stored.Fat, &stored.Fiber, &stored.LoggedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal: %w", err)
	}
	return stored, nil
}

func (s *ActivityService) InsertExercise(ctx context.Context, e *activity.ExerciseRecord) (*activity.ExerciseRecord, error) {
	query := `
	INSERT INTO exercises (id, user_id, log_date, name, exercise_type, duration_minutes, sets, reps, calories_burned, logged_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	RETURNING id, user_id, log_date, name, exercise_type, duration_minutes, sets, reps, calories_burned, logged_at
	`

	stored := &activity.ExerciseRecord{}
	err := s.db.QueryRow(ctx, query,
		uuid.New(), e.UserID, e.LogDate, e.Name, e.ExerciseType,
		e.DurationMinutes, e.Sets, e.Reps, e.CaloriesBurned,
	).Scan(&stored.ID, &stored.UserID, &stored.LogDate, &stored.Name, &stored.ExerciseType,
		&stored.DurationMinutes, &stored.Sets, &stored.Reps, &stored.CaloriesBurned, &stored.LoggedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert exercise: %w", err)
	}
	return stored, nil
}

// UpsertWater stores the day's cumulative glass count. One row per day, so a
// second log for the same date overwrites the first.
func (s *ActivityService) UpsertWater(ctx context.Context, userID uuid.UUID, date time.Time, glasses int) (*activity.WaterRecord, error) {
	query := `
	INSERT INTO water_logs (id, user_id, log_date, glasses)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, log_date) DO UPDATE SET glasses = $4
	RETURNING id, user_id, log_date, glasses
	`

	w := &activity.WaterRecord{}
	err := s.db.QueryRow(ctx, query, uuid.New(), userID, date, glasses).
		Scan(&w.ID, &w.UserID, &w.LogDate, &w.Glasses)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert water log: %w", err)
	}
	return w, nil
}

func (s *ActivityService) UpsertSteps(ctx context.Context, userID uuid.UUID, date time.Time, count int) (*activity.StepRecord, error) {
	query := `
	INSERT INTO step_logs (id, user_id, log_date, count)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, log_date) DO UPDATE SET count = $4
	RETURNING id, user_id, log_date, count
	`

	st := &activity.StepRecord{}
	err := s.db.QueryRow(ctx, query, uuid.New(), userID, date, count).
		Scan(&st.ID, &st.UserID, &st.LogDate, &st.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert step log: %w", err)
	}
	return st, nil
}

func (s *ActivityService) UpsertSleep(ctx context.Context, userID uuid.UUID, date time.Time, hours float64, quality int) (*activity.SleepRecord, error) {
	query := `
	INSERT INTO sleep_logs (id, user_id, log_date, hours, quality)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, log_date) DO UPDATE SET hours = $4, quality = $5
	RETURNING id, user_id, log_date, hours, quality
	`

	sl := &activity.SleepRecord{}
	err := s.db.QueryRow(ctx, query, uuid.New(), userID, date, hours, quality).
		Scan(&sl.ID, &sl.UserID, &sl.LogDate, &sl.Hours, &sl.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert sleep log: %w", err)
	}
	return sl, nil
}

func (s *ActivityService) UpsertWeight(ctx context.Context, userID uuid.UUID, date time.Time, kilograms float64) (*activity.WeightRecord, error) {
	query := `
	INSERT INTO weight_logs (id, user_id, log_date, kilograms)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, log_date) DO UPDATE SET kilograms = $4
	RETURNING id, user_id, log_date, kilograms
	`

	w := &activity.WeightRecord{}
	err := s.db.QueryRow(ctx, query, uuid.New(), userID, date, kilograms).
		Scan(&w.ID, &w.UserID, &w.LogDate, &w.Kilograms)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert weight log: %w", err)
	}
	return w, nil
}

func (s *ActivityService) UpsertSupplement(ctx context.Context, userID uuid.UUID, date time.Time, name string, taken bool) (*activity.SupplementRecord, error) {
	query := `
	INSERT INTO supplement_logs (id, user_id, log_date, name, taken)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, log_date, name) DO UPDATE SET taken = $5
	RETURNING id, user_id, log_date, name, taken
	`

	sp := &activity.SupplementRecord{}
	err := s.db.QueryRow(ctx, query, uuid.New(), userID, date, name, taken).
		Scan(&sp.ID, &sp.UserID, &sp.LogDate, &sp.Name, &sp.Taken)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert supplement log: %w", err)
	}
	return sp, nil
}

// DeletedRecord describes the row a DeleteRecord call removed. The facade
// needs the name for supplement removals because the cached set is keyed by
// name, not record id.
type DeletedRecord struct {
	Type activity.Type
	Name string
}

func (s *ActivityService) DeleteRecord(ctx context.Context, typ activity.Type, recordID uuid.UUID) (*DeletedRecord, error) {
	var table string
	switch typ {
	case activity.TypeMeal:
		table = "meals"
	case activity.TypeExercise:
		table = "exercises"
	case activity.TypeWater:
		table = "water_logs"
	case activity.TypeSteps:
		table = "step_logs"
	case activity.TypeSleep:
		table = "sleep_logs"
	case activity.TypeWeight:
		table = "weight_logs"
	case activity.TypeSupplement:
		var name string
		err := s.db.QueryRow(ctx,
			`DELETE FROM supplement_logs WHERE id = $1 RETURNING name`, recordID).Scan(&name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrRecordNotFound
			}
			return nil, fmt.Errorf("failed to delete supplement log: %w", err)
		}
		return &DeletedRecord{Type: typ, Name: name}, nil
	default:
		return nil, fmt.Errorf("unknown activity type %q", typ)
	}

	result, err := s.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s record: %w", typ, err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrRecordNotFound
	}
	return &DeletedRecord{Type: typ}, nil
}

// ActiveUserIDs lists users with at least one meal, exercise, water or step
// row in [from, to]. The weekly rollup worker uses it to decide whose week to
// materialize.
func (s *ActivityService) ActiveUserIDs(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	query := `
	SELECT DISTINCT user_id FROM (
		SELECT user_id FROM meals WHERE log_date BETWEEN $1 AND $2
		UNION
		SELECT user_id FROM exercises WHERE log_date BETWEEN $1 AND $2
		UNION
		SELECT user_id FROM water_logs WHERE log_date BETWEEN $1 AND $2
		UNION
		SELECT user_id FROM step_logs WHERE log_date BETWEEN $1 AND $2
	) active
	`

	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
