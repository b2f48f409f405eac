package helpers

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SetupTestDB connects to the test database, skipping the test when no URL is
// configured so the unit suite stays runnable without Postgres.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CleanupTestDB removes the rows a seeded test user left behind.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM users WHERE email LIKE 'test%@example.com'")
	if err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
	pool.Close()
}

// SeedTestUser inserts a minimal user profile and returns its id. The clerkID
// is what the auth middleware would have put on the request context.
func SeedTestUser(t *testing.T, pool *pgxpool.Pool, clerkID string) uuid.UUID {
	ctx := context.Background()
	userID := uuid.New()

	_, err := pool.Exec(ctx, `
		INSERT INTO users (
			id, clerk_id, email, name, age, weight_kg, height_cm,
			primary_goal, weight_goal, target_weight_kg, activity_level, tdee,
			dietary_preferences, medical_conditions, water_glass_goal, daily_step_goal,
			created_at, updated_at
		) VALUES (
			$1, $2, 'test.user@example.com', 'Test User', 30, 82.0, 178.0,
			'weight_loss', 'lose', 75.0, 'moderate', 2200,
			'{}', '{}', 8, 10000,
			NOW(), NOW()
		)`, userID, clerkID)
	if err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}

	// Any cached context from a previous run would skew version assertions.
	_, _ = pool.Exec(ctx, "DELETE FROM daily_contexts WHERE user_id = $1", userID)
	_, _ = pool.Exec(ctx, "DELETE FROM weekly_contexts WHERE user_id = $1", userID)

	return userID
}
