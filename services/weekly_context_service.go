package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitaLogAPI/internal/weeklycontext"
)

// WeeklyContextService persists one document per (user, week start). Weekly
// documents are replaced wholesale on rebuild, never patched, so every stored
// row sits at version 1 and the upsert needs no compare-and-swap. The rollup
// worker is the only scheduled writer; the admin rebuild endpoint racing it
// rewrites identical content.
type WeeklyContextService struct {
	db *pgxpool.Pool
}

func NewWeeklyContextService(db *pgxpool.Pool) *WeeklyContextService {
	return &WeeklyContextService{db: db}
}

func (s *WeeklyContextService) Get(ctx context.Context, userID uuid.UUID, weekStart time.Time) (*weeklycontext.Document, error) {
	query := `
	SELECT document
	FROM weekly_contexts
	WHERE user_id = $1 AND week_start = $2
	`

	var raw []byte
	err := s.db.QueryRow(ctx, query, userID, weekStart).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("failed to get weekly context: %w", err)
	}

	doc := &weeklycontext.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode weekly context document: %w", err)
	}
	return doc, nil
}

func (s *WeeklyContextService) Replace(ctx context.Context, userID uuid.UUID, weekStart time.Time, doc *weeklycontext.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode weekly context document: %w", err)
	}

	query := `
	INSERT INTO weekly_contexts (user_id, week_start, document, version, last_updated)
	VALUES ($1, $2, $3, 1, NOW())
	ON CONFLICT (user_id, week_start)
	DO UPDATE SET document = $3, version = 1, last_updated = NOW()
	`

	if _, err := s.db.Exec(ctx, query, userID, weekStart, raw); err != nil {
		return fmt.Errorf("failed to replace weekly context: %w", err)
	}
	return nil
}

// Exists lets the rollup worker skip weeks that are already materialized.
func (s *WeeklyContextService) Exists(ctx context.Context, userID uuid.UUID, weekStart time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM weekly_contexts WHERE user_id = $1 AND week_start = $2)`,
		userID, weekStart).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check weekly context: %w", err)
	}
	return exists, nil
}

// ListSummaries returns the most recent weeks as compact summaries for trend
// listings, newest first.
func (s *WeeklyContextService) ListSummaries(ctx context.Context, userID uuid.UUID, limit int) ([]weeklycontext.Summary, error) {
	if limit <= 0 || limit > 52 {
		limit = 12
	}

	query := `
	SELECT document
	FROM weekly_contexts
	WHERE user_id = $1
	ORDER BY week_start DESC
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly contexts: %w", err)
	}
	defer rows.Close()

	var summaries []weeklycontext.Summary
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan weekly context: %w", err)
		}
		doc := &weeklycontext.Document{}
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, fmt.Errorf("failed to decode weekly context document: %w", err)
		}
		summaries = append(summaries, doc.Summary())
	}
	return summaries, rows.Err()
}
