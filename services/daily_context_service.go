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

	"vitaLogAPI/internal/dailycontext"
)

// DailyContextService persists one aggregated document per (user, local date)
// as a JSONB blob beside an integer version column. The version column is the
// entire concurrency story: every write is conditioned on the version read,
// so the database linearizes writers per row without any in-process lock.
type DailyContextService struct {
	db *pgxpool.Pool
}

func NewDailyContextService(db *pgxpool.Pool) *DailyContextService {
	return &DailyContextService{db: db}
}

func (s *DailyContextService) Get(ctx context.Context, userID uuid.UUID, date time.Time) (*dailycontext.Document, int, error) {
	query := `
	SELECT document, version
	FROM daily_contexts
	WHERE user_id = $1 AND context_date = $2
	`

	var raw []byte
	var version int
	err := s.db.QueryRow(ctx, query, userID, date).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrContextNotFound
		}
		return nil, 0, fmt.Errorf("failed to get daily context: %w", err)
	}

	doc := &dailycontext.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, 0, fmt.Errorf("failed to decode daily context document: %w", err)
	}
	return doc, version, nil
}

// Insert seeds a brand new row at version 1. A unique-key violation means a
// concurrent writer seeded first; callers re-read in that case.
func (s *DailyContextService) Insert(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode daily context document: %w", err)
	}

	query := `
	INSERT INTO daily_contexts (user_id, context_date, document, version, last_updated)
	VALUES ($1, $2, $3, 1, NOW())
	`

	if _, err := s.db.Exec(ctx, query, userID, date, raw); err != nil {
		return fmt.Errorf("failed to insert daily context: %w", err)
	}
	return nil
}

// CompareAndSwap writes the document only if the stored version still equals
// expectedVersion, returning the new version. ErrUpdateConflict means a
// concurrent writer won and the caller must re-read and re-apply.
func (s *DailyContextService) CompareAndSwap(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document, expectedVersion int) (int, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode daily context document: %w", err)
	}

	query := `
	UPDATE daily_contexts
	SET document = $3, version = version + 1, last_updated = NOW()
	WHERE user_id = $1 AND context_date = $2 AND version = $4
	RETURNING version
	`

	var newVersion int
	err = s.db.QueryRow(ctx, query, userID, date, raw, expectedVersion).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUpdateConflict
		}
		return 0, fmt.Errorf("failed to update daily context: %w", err)
	}
	return newVersion, nil
}

// Upsert overwrites the row unconditionally at version 1. Rebuilds use it so
// a regenerated document always restarts the version history.
func (s *DailyContextService) Upsert(ctx context.Context, userID uuid.UUID, date time.Time, doc *dailycontext.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode daily context document: %w", err)
	}

	query := `
	INSERT INTO daily_contexts (user_id, context_date, document, version, last_updated)
	VALUES ($1, $2, $3, 1, NOW())
	ON CONFLICT (user_id, context_date)
	DO UPDATE SET document = $3, version = 1, last_updated = NOW()
	`

	if _, err := s.db.Exec(ctx, query, userID, date, raw); err != nil {
		return fmt.Errorf("failed to upsert daily context: %w", err)
	}
	return nil
}

func (s *DailyContextService) Delete(ctx context.Context, userID uuid.UUID, date time.Time) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM daily_contexts WHERE user_id = $1 AND context_date = $2`, userID, date)
	if err != nil {
		return fmt.Errorf("failed to delete daily context: %w", err)
	}
	return nil
}

// PurgeOlderThan is the administrative retention sweep. Purged dates return
// to the absent state and reseed lazily on next access.
func (s *DailyContextService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	result, err := s.db.Exec(ctx,
		`DELETE FROM daily_contexts WHERE context_date < CURRENT_DATE - $1::int`, days)
	if err != nil {
		return 0, fmt.Errorf("failed to purge daily contexts: %w", err)
	}
	return result.RowsAffected(), nil
}
