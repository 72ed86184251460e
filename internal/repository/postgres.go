package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/aula/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const getTier = `SELECT tier FROM profiles WHERE user_id = $1`

// GetTier returns the user's tier.
func (s *PostgresStore) GetTier(ctx context.Context, userID uuid.UUID) (domain.Tier, error) {
	var tier string
	err := s.db.QueryRowContext(ctx, getTier, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get tier: %w", err)
	}
	return domain.ParseTier(tier), nil
}

const upsertTier = `
INSERT INTO profiles (user_id, tier)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = NOW()`

// SetTier creates or updates the user's profile.
func (s *PostgresStore) SetTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) error {
	if _, err := s.db.ExecContext(ctx, upsertTier, userID, string(tier)); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}

const appendUsage = `
INSERT INTO usage_records (id, user_id, generation_type, category, tier, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// AppendUsage stores one usage record.
func (s *PostgresStore) AppendUsage(ctx context.Context, rec domain.UsageRecord) error {
	metadata := pqtype.NullRawMessage{
		RawMessage: rec.Metadata,
		Valid:      len(rec.Metadata) > 0,
	}
	_, err := s.db.ExecContext(ctx, appendUsage,
		rec.ID,
		rec.UserID,
		string(rec.GenerationType),
		string(rec.Category),
		string(rec.Tier),
		metadata,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append usage: %w", err)
	}
	return nil
}

const countUsageByCategory = `
SELECT category, COUNT(*)
FROM usage_records
WHERE user_id = $1
  AND created_at >= $2
  AND category = ANY($3)
GROUP BY category`

// CountUsageByCategory counts the user's records since the given instant.
func (s *PostgresStore) CountUsageByCategory(ctx context.Context, userID uuid.UUID, since time.Time) (map[domain.LimitCategory]int64, error) {
	categories := make([]string, len(domain.AllCategories))
	for i, c := range domain.AllCategories {
		categories[i] = string(c)
	}

	rows, err := s.db.QueryContext(ctx, countUsageByCategory, userID, since, pq.Array(categories))
	if err != nil {
		return nil, fmt.Errorf("count usage: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.LimitCategory]int64, len(categories))
	for rows.Next() {
		var (
			category string
			n        int64
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		counts[domain.LimitCategory(category)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage counts: %w", err)
	}
	return counts, nil
}

const listUsage = `
SELECT id, user_id, generation_type, category, tier, metadata, created_at
FROM usage_records
WHERE user_id = $1
  AND created_at >= $2
ORDER BY created_at DESC
LIMIT $3`

// ListUsage returns recent records for the user.
func (s *PostgresStore) ListUsage(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]domain.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, listUsage, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var (
			rec      domain.UsageRecord
			genType  string
			category string
			tier     string
			metadata pqtype.NullRawMessage
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &genType, &category, &tier, &metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.GenerationType = domain.GenerationType(genType)
		rec.Category = domain.LimitCategory(category)
		rec.Tier = domain.ParseTier(tier)
		if metadata.Valid {
			rec.Metadata = metadata.RawMessage
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage records: %w", err)
	}
	return records, nil
}
